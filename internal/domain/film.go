package domain

import "strings"

const (
	// FullStar 与 HalfStar 是评分字形的封闭词表。
	FullStar = "★"
	HalfStar = "½"
)

// Film 是某个用户看过的一部影片。
//
// 约束：
// - ID 是站点上的 film slug，作为集合键；同一部影片出现在两个用户里是两个独立的 Film
// - Stars=="" 表示未评分（Rating()==0）；Year==0 表示年份未知
// - Reviewed=false 时 Review 必为空且 Spoiler=false（见 Normalize）
// - Enriched 只在详情页抓取并解析成功后置为 true；之后不再发起网络请求
type Film struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Year     int    `json:"year"`
	Stars    string `json:"stars"`
	Liked    bool   `json:"liked"`
	Reviewed bool   `json:"reviewed"`
	Review   string `json:"review"`
	Spoiler  bool   `json:"spoiler"`
	Enriched bool   `json:"enriched"`
}

// NewFilm 构造列表页上得到的“部分填充” Film。
func NewFilm(id, title, stars string, liked, reviewed bool) Film {
	return Film{
		ID:       strings.TrimSpace(id),
		Title:    strings.TrimSpace(title),
		Stars:    strings.TrimSpace(stars),
		Liked:    liked,
		Reviewed: reviewed,
	}
}

// Rating 由 Stars 推导（不缓存，避免两份状态不一致）。
func (f Film) Rating() float64 { return StarsToRating(f.Stars) }

// Normalize 强制 Reviewed=false => Review=="" && Spoiler=false。
func (f Film) Normalize() Film {
	if !f.Reviewed {
		f.Review = ""
		f.Spoiler = false
	}
	return f
}

// NeedsReview 表示还缺影评正文（有影评链接、正文为空且尚未抓取详情页）。
func (f Film) NeedsReview() bool { return f.Reviewed && !f.Enriched && f.Review == "" }

// NeedsYear 表示还缺年份（尚未抓取详情页）。
func (f Film) NeedsYear() bool { return f.Year == 0 && !f.Enriched }

// StarsToRating 把评分字形映射为数值：★ 计 1，½ 计 0.5，其它字符忽略。
// 对任意字符串都是全函数；"" => 0。
func StarsToRating(stars string) float64 {
	if stars == "" {
		return 0
	}
	full := strings.Count(stars, FullStar)
	half := strings.Count(stars, HalfStar)
	return float64(full) + 0.5*float64(half)
}
