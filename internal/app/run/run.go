package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/lbxd/internal/app"
	"github.com/John-Robertt/lbxd/internal/app/build"
	"github.com/John-Robertt/lbxd/internal/config"
	"github.com/John-Robertt/lbxd/internal/domain"
	"github.com/John-Robertt/lbxd/internal/infra/cache"
	"github.com/John-Robertt/lbxd/internal/infra/logx"
	"github.com/John-Robertt/lbxd/internal/infra/retry"
	"github.com/John-Robertt/lbxd/internal/provider"
)

// Deps 是一次 run 的外部依赖（由 cmd 层构造并持有）。
type Deps struct {
	Provider provider.Provider
	// Client 由调用方创建并在退出时关闭空闲连接；run 只借用。
	Client *http.Client
	Logger *zap.Logger
	// Sleep 允许测试替换重试冷却；nil 表示真实等待。
	Sleep func(ctx context.Context, d time.Duration) error
}

// Execute 执行一次比较，并返回对外稳定的 CompareReport。
// 单个用户的失败只体现在该用户的 UserResult 上，不影响其他用户。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.CompareReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.CompareReport {
	started := time.Now().UTC()
	log := logx.OrNop(deps.Logger)

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.CompareReport{
		StartedAt: started,
		Users:     make([]domain.UserResult, 0, len(eff.Users)),
	}

	client := deps.Client
	if client == nil {
		client = http.DefaultClient
	}

	opts := build.Options{
		Concurrency:    eff.Concurrency,
		PageWorkers:    eff.PageWorkers,
		MaxConnections: int64(eff.MaxConnections),
		WithYear:       eff.WithYear,
		Retry: retry.Policy{
			Cooldown:   eff.RetryCooldown,
			MaxRetries: eff.RetryMax,
			Sleep:      deps.Sleep,
		},
		Details: cache.New[provider.FilmDetail](0),
		Logger:  log,
	}
	if obs != nil {
		opts.Progress = obs.OnFilmProgress
	}
	b := build.New(deps.Provider, client, opts)

	users := eff.Users

	type buildResult struct {
		idx  int
		prof *domain.Profile
		res  domain.UserResult
		dur  time.Duration
	}

	// 按用户并发（worker pool）；用户内的分页/补全并发由 Builder 控制。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(users) {
		workers = len(users)
	}

	jobs := make(chan int)
	results := make(chan buildResult, len(users))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				oneStarted := time.Now()
				prof, err := b.Build(ctx, users[idx])
				results <- buildResult{
					idx:  idx,
					prof: prof,
					res:  userResult(users[idx], prof, err),
					dur:  time.Since(oneStarted),
				}
			}
		}()
	}

	go func() {
		for i := range users {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	profiles := make([]*domain.Profile, len(users))
	byIdx := make([]domain.UserResult, len(users))
	done := 0
	for it := range results {
		done++
		profiles[it.idx] = it.prof
		byIdx[it.idx] = it.res
		if obs != nil {
			obs.OnUserDone(done, len(users), it.res, it.dur)
		}
	}

	// 集合运算只针对已找到的用户，且保持输入顺序（Diff 左锚定）。
	found := make([]*domain.Profile, 0, len(users))
	foundIdx := make([]int, 0, len(users))
	for i, p := range profiles {
		if p != nil {
			found = append(found, p)
			foundIdx = append(foundIdx, i)
		}
	}

	compareStarted := time.Now()
	if len(found) > 0 {
		rr.Common = app.CommonFilms(found...)
		for k, i := range foundIdx {
			byIdx[i].Only = app.OnlyOf(k, found)
		}
	}
	if obs != nil {
		obs.OnPhaseDone("compare", map[string]any{
			"found":  len(found),
			"common": len(rr.Common),
		}, time.Since(compareStarted))
	}

	rr.Users = append(rr.Users, byIdx...)
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	log.Info("比较完成",
		zap.Int("users", len(users)),
		zap.Int("found", rr.Summary.Found),
		zap.Int("common", rr.Summary.Common),
		zap.Duration("elapsed", rr.FinishedAt.Sub(rr.StartedAt)),
	)
	return rr
}

// userResult 把 Build 的结果映射为报告行。
func userResult(user string, prof *domain.Profile, err error) domain.UserResult {
	res := domain.UserResult{Username: user, Only: []string{}}
	if err == nil && prof != nil {
		res.Status = domain.StatusFound
		res.Films = prof.Len()
		return res
	}

	switch {
	case errors.Is(err, build.ErrUserNotFound):
		res.Status = domain.StatusNotFound
		res.ErrorCode = domain.ErrCodeUserNotFound
		res.ErrorMsg = fmt.Sprintf("Could not find user %s", user)
	case errors.Is(err, build.ErrListingUnavailable):
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeListingUnavailable
		res.ErrorMsg = err.Error()
	default:
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeFetchFailed
		if err != nil {
			res.ErrorMsg = err.Error()
		}
	}
	return res
}
