package letterboxd

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/lbxd/internal/domain"
	providerx "github.com/John-Robertt/lbxd/internal/provider"
)

// SpoilerMarker 出现在详情页 description meta 中表示影评含剧透。
const SpoilerMarker = "This review may contain spoilers"

// ParseLastPage 读取分页控件最后一个页码；没有分页控件（只有一页）或无法解析时返回 1。
func (Provider) ParseLastPage(html []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return 1
	}
	last := strings.TrimSpace(doc.Find("li.paginate-page").Last().Find("a").First().Text())
	n, err := strconv.Atoi(last)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ParseListing 把列表页解析为部分填充的 Film（页面顺序）。
//
// 每个 li.poster-container：
// - id：海报 div 的 data-film-slug（缺失则跳过该条目）
// - title：海报 img 的 alt（缺失为 ""）
// - stars：p 内 span.rating 文本（缺失为 "" 即未评分）
// - liked：p 内存在 span.like
// - reviewed：p 内存在影评链接 a
//
// 同页重复 id：后出现的覆盖先出现的（保留首次位置）。
func (Provider) ParseListing(html []byte) ([]domain.Film, error) {
	if len(html) == 0 {
		return nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Film, 0, 72)
	index := make(map[string]int, 72)
	doc.Find("li.poster-container").Each(func(_ int, li *goquery.Selection) {
		poster := li.Find("div[data-film-slug]").First()
		id, ok := poster.Attr("data-film-slug")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return
		}
		title, _ := poster.Find("img").First().Attr("alt")

		data := li.Find("p").First()
		stars := starsOf(data)
		liked := data.Find("span.like").Length() > 0
		reviewed := data.Find("a").Length() > 0

		f := domain.NewFilm(id, title, stars, liked, reviewed)
		if i, ok := index[id]; ok {
			out[i] = f
			return
		}
		index[id] = len(out)
		out = append(out, f)
	})
	return out, nil
}

// starsOf 只接受由评分字形组成的文本，其它内容视为未评分。
func starsOf(data *goquery.Selection) string {
	s := strings.TrimSpace(data.Find("span.rating").First().Text())
	if s == "" {
		return ""
	}
	for _, r := range s {
		if string(r) != domain.FullStar && string(r) != domain.HalfStar {
			return ""
		}
	}
	return s
}

// ParseFilm 解析某用户某部影片的详情页。
//
// - 剧透：meta[name=description] 含 SpoilerMarker；meta 缺失 => ReviewFound=false（空影评，不报错）
// - 影评：影评正文的段落按 "\n" 拼接；含剧透时第一段是剧透提示，不计入正文
// - 年份/标题：meta[property=og:title] 形如 "Title (2019)"，年份取固定偏移 [len-5, len-1)
func (Provider) ParseFilm(html []byte) (providerx.FilmDetail, error) {
	if len(html) == 0 {
		return providerx.FilmDetail{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return providerx.FilmDetail{}, err
	}

	var d providerx.FilmDetail
	if og, ok := doc.Find("meta[property='og:title']").First().Attr("content"); ok {
		d.Title, d.Year = splitTitleYear(og)
	}

	desc, ok := doc.Find("meta[name='description']").First().Attr("content")
	if !ok {
		return d, nil
	}
	d.ReviewFound = true
	d.Spoiler = strings.Contains(desc, SpoilerMarker)

	paras := reviewParagraphs(doc)
	if d.Spoiler && len(paras) > 0 {
		paras = paras[1:]
	}
	d.Review = strings.Join(paras, "\n")
	return d, nil
}

func reviewParagraphs(doc *goquery.Document) []string {
	body := doc.Find("div.review.body-text, div.review div.body-text").First()
	if body.Length() == 0 {
		body = doc.Find("div.body-text").First()
	}
	out := make([]string, 0, 4)
	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		s := strings.TrimSpace(p.Text())
		if s == "" {
			return
		}
		out = append(out, s)
	})
	return out
}

// splitTitleYear 以固定偏移提取 "Title (2019)" 的年份；不符合该形状时年份为 0、标题为原文。
func splitTitleYear(s string) (string, int) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || s[len(s)-1] != ')' || s[len(s)-6] != '(' {
		return s, 0
	}
	y, err := strconv.Atoi(s[len(s)-5 : len(s)-1])
	if err != nil || y <= 0 {
		return s, 0
	}
	return strings.TrimSpace(s[:len(s)-6]), y
}
