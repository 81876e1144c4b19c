package build

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/John-Robertt/lbxd/internal/domain"
)

// Enrich 用详情页补全一部影片（影评/剧透/年份）。
//
// - 不需要影评（Reviewed=false 或已补全）且不需要年份时，直接返回，不发起网络请求
// - 抓取或解析失败：返回补全前的 Film（降级），不报错
// - 幂等：对已补全的 Film 再次调用返回相同值
func (b *Builder) Enrich(ctx context.Context, user string, f domain.Film) domain.Film {
	f = f.Normalize()
	needReview := f.NeedsReview()
	needYear := b.opts.WithYear && f.NeedsYear()
	if !needReview && !needYear {
		return f
	}

	log := b.log.With(zap.String("user", user), zap.String("film", f.ID))

	d, ok, err := b.filmDetail(ctx, user, f.ID)
	if err != nil {
		log.Warn("详情页获取失败，保留列表页信息", zap.Error(err))
		return f
	}
	if !ok {
		log.Warn("详情页重试耗尽，保留列表页信息")
		return f
	}

	out := f
	if out.Year == 0 {
		out.Year = d.Year
	}
	if out.Title == "" {
		out.Title = d.Title
	}
	// 已有影评正文（例如调用方预先填充）时不覆盖。
	if out.Reviewed && out.Review == "" {
		if !d.ReviewFound {
			log.Debug("详情页缺少影评描述，按空影评处理")
		}
		out.Review = d.Review
		out.Spoiler = d.Spoiler
	}
	out.Enriched = true
	return out.Normalize()
}

// EnrichAll 以 Concurrency 个 worker 并发补全 films，保持输入顺序。
// 单部失败只降级自身；ctx 取消后剩余影片保持原样返回。
func (b *Builder) EnrichAll(ctx context.Context, user string, films []domain.Film) []domain.Film {
	out := make([]domain.Film, len(films))
	if len(films) == 0 {
		return out
	}

	workers := b.opts.Concurrency
	if workers > len(films) {
		workers = len(films)
	}

	type job struct {
		idx  int
		film domain.Film
	}
	type result struct {
		idx  int
		film domain.Film
	}

	jobs := make(chan job)
	results := make(chan result, len(films))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				f := j.film
				if ctx.Err() == nil {
					f = b.Enrich(ctx, user, f)
				}
				results <- result{idx: j.idx, film: f}
			}
		}()
	}

	go func() {
		for i, f := range films {
			jobs <- job{idx: i, film: f}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		out[r.idx] = r.film
		if b.opts.Progress != nil {
			b.opts.Progress(user, done, len(films))
		}
	}
	return out
}
