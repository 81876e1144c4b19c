package app

import (
	"github.com/John-Robertt/lbxd/internal/domain"
)

// Common 返回所有 profile 共同拥有的 film ID（交集）。
//
// - 只有一个 profile：返回它的全部 ID
// - 纯函数：不修改任何 Profile
// - 零个 profile 是调用方错误：panic
func Common(profiles ...*domain.Profile) domain.IDSet {
	mustHaveProfiles("Common", profiles)

	out := profiles[0].IDSet()
	for _, p := range profiles[1:] {
		for id := range out {
			if !p.Has(id) {
				delete(out, id)
			}
		}
	}
	return out
}

// Diff 返回第一个 profile 的 ID 减去其余 profile 的并集（左锚定差集）。
//
// - 只有一个 profile：返回它的全部 ID
// - 纯函数：不修改任何 Profile
// - 零个 profile 是调用方错误：panic
func Diff(profiles ...*domain.Profile) domain.IDSet {
	mustHaveProfiles("Diff", profiles)

	out := profiles[0].IDSet()
	for _, p := range profiles[1:] {
		for id := range out {
			if p.Has(id) {
				delete(out, id)
			}
		}
	}
	return out
}

func mustHaveProfiles(op string, profiles []*domain.Profile) {
	if len(profiles) == 0 {
		panic("app." + op + "：至少需要一个 profile")
	}
	for _, p := range profiles {
		if p == nil {
			panic("app." + op + "：profile 不能为 nil")
		}
	}
}

// CommonFilms 把交集展开为报告行：每行带上每个用户自己的评分/喜欢/影评。
// 标题/年份取第一个有值的 profile。
func CommonFilms(profiles ...*domain.Profile) []domain.CommonFilm {
	ids := Common(profiles...).Sorted()
	out := make([]domain.CommonFilm, 0, len(ids))
	for _, id := range ids {
		row := domain.CommonFilm{ID: id, Entries: make([]domain.FilmEntry, 0, len(profiles))}
		for _, p := range profiles {
			f, _ := p.Get(id)
			if row.Title == "" {
				row.Title = f.Title
			}
			if row.Year == 0 {
				row.Year = f.Year
			}
			row.Entries = append(row.Entries, domain.EntryOf(p.Username(), f))
		}
		out = append(out, row)
	}
	return out
}

// OnlyOf 返回 profiles[i] 相对其余 profile 的差集（字典序）。
func OnlyOf(i int, profiles []*domain.Profile) []string {
	rest := make([]*domain.Profile, 0, len(profiles))
	rest = append(rest, profiles[i])
	for j, p := range profiles {
		if j != i {
			rest = append(rest, p)
		}
	}
	return Diff(rest...).Sorted()
}
