package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

const (
	StatusFound    = "found"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

const (
	ErrCodeUserNotFound       = "user_not_found"
	ErrCodeListingUnavailable = "listing_unavailable"
	ErrCodeFetchFailed        = "fetch_failed"
)

// CompareReport 是对外稳定输出（stdout JSON / json 格式文件）的结构。
type CompareReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary CompareSummary `json:"summary"`
	Users   []UserResult   `json:"users"`
	Common  []CommonFilm   `json:"common"`
}

type CompareSummary struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
	Common   int `json:"common"`
}

// UserResult 是单个用户的构建结果。
// Only 是该用户相对其他已找到用户的差集（字典序）。
type UserResult struct {
	Username  string   `json:"username"`
	Status    string   `json:"status"`
	ErrorCode string   `json:"error_code"`
	ErrorMsg  string   `json:"error_msg"`
	Films     int      `json:"films"`
	Only      []string `json:"only"`
}

// CommonFilm 是所有已找到用户共同看过的一部影片，Entries 保存每个用户自己的评分/喜欢/影评。
type CommonFilm struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Year    int         `json:"year"`
	Entries []FilmEntry `json:"entries"`
}

type FilmEntry struct {
	Username string  `json:"username"`
	Stars    string  `json:"stars"`
	Rating   float64 `json:"rating"`
	Liked    bool    `json:"liked"`
	Reviewed bool    `json:"reviewed"`
	Review   string  `json:"review"`
	Spoiler  bool    `json:"spoiler"`
}

// EntryOf 把某用户的 Film 投影为报告条目。
func EntryOf(username string, f Film) FilmEntry {
	f = f.Normalize()
	return FilmEntry{
		Username: username,
		Stars:    f.Stars,
		Rating:   f.Rating(),
		Liked:    f.Liked,
		Reviewed: f.Reviewed,
		Review:   f.Review,
		Spoiler:  f.Spoiler,
	}
}

// FoundUsers 返回 Status=found 的用户名（保持 Users 当前顺序）。
func (r *CompareReport) FoundUsers() []string {
	out := make([]string, 0, len(r.Users))
	for _, u := range r.Users {
		if u.Status == StatusFound {
			out = append(out, u.Username)
		}
	}
	return out
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) 稳定排序：users 按用户名；common 按标题（不区分大小写）再按 ID；entries 按用户名
// 3) summary 由 users/common 计算得出
func (r *CompareReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Users == nil {
		r.Users = []UserResult{}
	}
	if r.Common == nil {
		r.Common = []CommonFilm{}
	}

	sort.SliceStable(r.Users, func(i, j int) bool { return r.Users[i].Username < r.Users[j].Username })
	for i := range r.Users {
		if r.Users[i].Only == nil {
			r.Users[i].Only = []string{}
		}
		sort.Strings(r.Users[i].Only)
	}

	sort.SliceStable(r.Common, func(i, j int) bool {
		a := strings.ToLower(r.Common[i].Title)
		b := strings.ToLower(r.Common[j].Title)
		if a != b {
			return a < b
		}
		return r.Common[i].ID < r.Common[j].ID
	})
	for i := range r.Common {
		es := r.Common[i].Entries
		sort.SliceStable(es, func(a, b int) bool { return es[a].Username < es[b].Username })
	}

	var s CompareSummary
	for _, u := range r.Users {
		switch u.Status {
		case StatusFound:
			s.Found++
		case StatusNotFound:
			s.NotFound++
		case StatusFailed:
			s.Failed++
		}
	}
	s.Common = len(r.Common)
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r CompareReport) MarshalJSON() ([]byte, error) {
	type Alias CompareReport
	return json.Marshal(Alias(r))
}
