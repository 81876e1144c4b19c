package letterboxd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/lbxd/internal/domain"
	providerx "github.com/John-Robertt/lbxd/internal/provider"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func TestParseListing_SingleLikedUnreviewed(t *testing.T) {
	html := []byte(`<html><body><ul>
<li class="poster-container">
  <div class="film-poster" data-film-slug="movie-x"><img alt="Movie X"/></div>
  <p class="poster-viewingdata"><span class="rating">★★★</span><span class="like"></span></p>
</li>
</ul></body></html>`)

	films, err := Provider{}.ParseListing(html)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.Film{{ID: "movie-x", Title: "Movie X", Stars: "★★★", Liked: true, Reviewed: false}}
	if diff := cmp.Diff(want, films); diff != "" {
		t.Fatalf("解析结果不符合预期 (-want +got):\n%s", diff)
	}
	if films[0].Rating() != 3.0 {
		t.Fatalf("期望 rating=3.0，实际 %v", films[0].Rating())
	}
}

func TestParseListing_Fixture(t *testing.T) {
	films, err := Provider{}.ParseListing(readFixture(t, "listing_page1.html"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.Film{
		{ID: "movie-x", Title: "Movie X", Stars: "★★★", Liked: true},
		{ID: "brazil", Title: "Brazil", Stars: "★★★½", Reviewed: true},
		{ID: "unrated-one"},
	}
	if diff := cmp.Diff(want, films); diff != "" {
		t.Fatalf("解析结果不符合预期 (-want +got):\n%s", diff)
	}
}

func TestParseListing_DuplicateLastWins(t *testing.T) {
	html := []byte(`<ul>
<li class="poster-container"><div data-film-slug="a"><img alt="A1"/></div></li>
<li class="poster-container"><div data-film-slug="b"><img alt="B"/></div></li>
<li class="poster-container"><div data-film-slug="a"><img alt="A2"/></div><p><span class="like"></span></p></li>
</ul>`)
	films, err := Provider{}.ParseListing(html)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(films) != 2 || films[0].ID != "a" || films[0].Title != "A2" || !films[0].Liked {
		t.Fatalf("重复 id 应后写覆盖且保留首位：%+v", films)
	}
}

func TestParseListing_NonGlyphRatingIsUnrated(t *testing.T) {
	html := []byte(`<li class="poster-container"><div data-film-slug="a"></div><p><span class="rating">n/r</span></p></li>`)
	films, _ := Provider{}.ParseListing(html)
	if len(films) != 1 || films[0].Stars != "" || films[0].Rating() != 0 {
		t.Fatalf("非字形评分应视为未评分：%+v", films)
	}
}

func TestParseListing_EmptyHTML(t *testing.T) {
	if _, err := (Provider{}).ParseListing(nil); err == nil {
		t.Fatalf("空 html 应报错")
	}
}

func TestParseLastPage(t *testing.T) {
	if n := (Provider{}).ParseLastPage(readFixture(t, "listing_page1.html")); n != 3 {
		t.Fatalf("期望最后页=3，实际 %d", n)
	}
	if n := (Provider{}).ParseLastPage([]byte(`<html><body><ul></ul></body></html>`)); n != 1 {
		t.Fatalf("无分页控件时应为 1，实际 %d", n)
	}
	if n := (Provider{}).ParseLastPage([]byte(`<li class="paginate-page"><a>next</a></li>`)); n != 1 {
		t.Fatalf("无法解析的页码应为 1，实际 %d", n)
	}
}

func TestParseFilm_SpoilerDropsFirstParagraph(t *testing.T) {
	d, err := Provider{}.ParseFilm(readFixture(t, "film_spoiler.html"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := providerx.FilmDetail{Title: "Brazil", Year: 1985, ReviewFound: true, Review: "Actual review text", Spoiler: true}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("解析结果不符合预期 (-want +got):\n%s", diff)
	}
}

func TestParseFilm_PlainJoinsParagraphs(t *testing.T) {
	d, err := Provider{}.ParseFilm(readFixture(t, "film_plain.html"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if d.Spoiler {
		t.Fatalf("不应判定为剧透")
	}
	if d.Review != "First line.\nSecond line." {
		t.Fatalf("影评拼接不正确：%q", d.Review)
	}
	if d.Year != 2019 || d.Title != "Movie X" {
		t.Fatalf("标题/年份不正确：%q %d", d.Title, d.Year)
	}
}

func TestParseFilm_MissingDescriptionIsSoftFailure(t *testing.T) {
	d, err := Provider{}.ParseFilm(readFixture(t, "film_no_meta.html"))
	if err != nil {
		t.Fatalf("结构缺失不应报错：%v", err)
	}
	if d.ReviewFound || d.Review != "" || d.Spoiler || d.Year != 0 {
		t.Fatalf("期望空结果，实际 %+v", d)
	}
}

func TestSplitTitleYear(t *testing.T) {
	cases := []struct {
		in    string
		title string
		year  int
	}{
		{"Movie X (2019)", "Movie X", 2019},
		{"(500) Days of Summer (2009)", "(500) Days of Summer", 2009},
		{"Untitled", "Untitled", 0},
		{"Odd (abcd)", "Odd (abcd)", 0},
		{"", "", 0},
	}
	for _, tc := range cases {
		title, year := splitTitleYear(tc.in)
		if title != tc.title || year != tc.year {
			t.Fatalf("splitTitleYear(%q)=(%q,%d)，期望 (%q,%d)", tc.in, title, year, tc.title, tc.year)
		}
	}
}
