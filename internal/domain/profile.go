package domain

import "strings"

// Profile 是一个用户完整的观影目录（只读）。
//
// 约束：
// - 只能通过 NewProfile 构造；构造完成后不再修改
// - 顺序反映列表页顺序（用于确定性输出）
// - 重复 ID：后写覆盖，但保留首次出现的位置
type Profile struct {
	username string
	films    []Film
	index    map[string]int
}

// NewProfile 以 films 的顺序构造 Profile。films 会被复制，调用方之后的修改不影响 Profile。
func NewProfile(username string, films []Film) *Profile {
	p := &Profile{
		username: strings.TrimSpace(username),
		films:    make([]Film, 0, len(films)),
		index:    make(map[string]int, len(films)),
	}
	for _, f := range films {
		if f.ID == "" {
			continue
		}
		f = f.Normalize()
		if i, ok := p.index[f.ID]; ok {
			p.films[i] = f
			continue
		}
		p.index[f.ID] = len(p.films)
		p.films = append(p.films, f)
	}
	return p
}

func (p *Profile) Username() string { return p.username }

func (p *Profile) Len() int { return len(p.films) }

// Get 按 film ID 查询。
func (p *Profile) Get(id string) (Film, bool) {
	i, ok := p.index[id]
	if !ok {
		return Film{}, false
	}
	return p.films[i], true
}

func (p *Profile) Has(id string) bool {
	_, ok := p.index[id]
	return ok
}

// At 按位置取 Film；越界时 panic（与切片下标一致）。
func (p *Profile) At(i int) Film { return p.films[i] }

// Slice 返回 [i, j) 的副本；越界时 panic（与切片表达式一致）。
func (p *Profile) Slice(i, j int) []Film {
	return append([]Film(nil), p.films[i:j]...)
}

// Films 返回全部 Film 的副本（列表页顺序）。
func (p *Profile) Films() []Film { return p.Slice(0, len(p.films)) }

// IDs 返回全部 film ID（列表页顺序）。
func (p *Profile) IDs() []string {
	out := make([]string, 0, len(p.films))
	for _, f := range p.films {
		out = append(out, f.ID)
	}
	return out
}

// IDSet 返回 film ID 集合（每次新建）。
func (p *Profile) IDSet() IDSet { return NewIDSet(p.IDs()...) }
