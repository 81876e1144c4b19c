package build

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/lbxd/internal/domain"
	"github.com/John-Robertt/lbxd/internal/infra/cache"
	"github.com/John-Robertt/lbxd/internal/infra/httpx"
	"github.com/John-Robertt/lbxd/internal/infra/logx"
	"github.com/John-Robertt/lbxd/internal/infra/retry"
	"github.com/John-Robertt/lbxd/internal/provider"
)

const (
	DefaultConcurrency    = 8
	DefaultPageWorkers    = 4
	DefaultMaxConnections = 16
)

var (
	// ErrUserNotFound 表示存在性检查未通过（非 2xx，或重试耗尽）。
	ErrUserNotFound = errors.New("用户不存在")
	// ErrListingUnavailable 表示第 1 页列表无法获取，无法构建 Profile。
	ErrListingUnavailable = errors.New("无法获取影片列表第 1 页")
)

// Options 是 Builder 的可调项；零值字段使用包内默认值（Retry 除外，零值即“只尝试一次”）。
type Options struct {
	// Concurrency 是单个用户内详情页补全的 worker 数。
	Concurrency int
	// PageWorkers 是列表页 2..N 的并发抓取上限。
	PageWorkers int
	// MaxConnections 是 Builder 全局同时在途请求数上限（跨用户共享）。
	MaxConnections int64

	// WithYear 为 true 时，即使不需要影评也会抓取详情页补全年份。
	WithYear bool

	Retry retry.Policy
	// Details 缓存解析后的详情页；nil 时 New 会创建默认容量的缓存。
	Details *cache.LRU[provider.FilmDetail]
	Logger  *zap.Logger

	// Progress 在每部影片补全结束时调用（可能来自多个 goroutine；必须并发安全）。
	Progress func(user string, done, total int)
}

// Builder 编排“存在性检查 -> 分页抓取 -> 列表解析 -> 并发补全 -> Profile”。
//
// 约束：
// - 所有网络请求都经过连接上限 + 有界重试；详情页另有解析结果缓存与 singleflight
// - 单页/单片失败只影响自身（降级），不取消其它请求；只有调用方 ctx 能取消整体
// - 多个用户可以并发调用同一个 Builder（caller 负责并发）
type Builder struct {
	prov   provider.Provider
	client *http.Client
	opts   Options
	log    *zap.Logger

	sem *semaphore.Weighted
	sf  singleflight.Group
}

// New 构造 Builder。client 由调用方持有与关闭（Builder 只借用）。
func New(prov provider.Provider, client *http.Client, opts Options) *Builder {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PageWorkers < 1 {
		opts.PageWorkers = DefaultPageWorkers
	}
	if opts.MaxConnections < 1 {
		opts.MaxConnections = DefaultMaxConnections
	}
	log := logx.OrNop(opts.Logger).With(zap.String("provider", prov.Name()))
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = httpx.IsTransient
	}
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = log
	}
	if opts.Details == nil {
		opts.Details = cache.New[provider.FilmDetail](0)
	}
	return &Builder{
		prov:   prov,
		client: client,
		opts:   opts,
		log:    log,
		sem:    semaphore.NewWeighted(opts.MaxConnections),
	}
}

// Exists 检查用户是否存在。
// 非 2xx => false；传输层重试耗尽同样视为不存在（无法确认即不纳入输出）。
func (b *Builder) Exists(ctx context.Context, user string) (bool, error) {
	ok, got, err := retry.Do(ctx, b.policy("exists", user), func(ctx context.Context) (bool, error) {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return false, err
		}
		defer b.sem.Release(1)
		return b.prov.Exists(ctx, b.client, user)
	})
	if err != nil {
		return false, b.stageErr("exists", err)
	}
	if !got {
		b.log.Warn("存在性检查重试耗尽，视为用户不存在", zap.String("user", user))
		return false, nil
	}
	return ok, nil
}

// Build 构建一个完整的 Profile。
//
// 返回：
// - ErrUserNotFound：用户不存在，不会发出任何列表/详情请求
// - ErrListingUnavailable：第 1 页不可用
// - ctx 错误：运行被取消（不返回“半成品” Profile）
func (b *Builder) Build(ctx context.Context, user string) (*domain.Profile, error) {
	user = strings.TrimSpace(user)
	ok, err := b.Exists(ctx, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		b.log.Info("用户不存在", zap.String("user", user))
		return nil, fmt.Errorf("%w：%s", ErrUserNotFound, user)
	}

	pages, err := b.Pages(ctx, user)
	if err != nil {
		return nil, err
	}

	films := make([]domain.Film, 0, len(pages)*72)
	for _, p := range pages {
		fs, err := b.prov.ParseListing(p.HTML)
		if err != nil {
			b.log.Warn("列表页解析失败，跳过该页", zap.String("user", user), zap.Int("page", p.Num), zap.Error(err))
			continue
		}
		films = append(films, fs...)
	}

	films = b.EnrichAll(ctx, user, films)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prof := domain.NewProfile(user, films)
	b.log.Info("用户构建完成", zap.String("user", user), zap.Int("pages", len(pages)), zap.Int("films", prof.Len()))
	return prof, nil
}

func (b *Builder) policy(op, user string) retry.Policy {
	p := b.opts.Retry
	p.Logger = p.Logger.With(zap.String("op", op), zap.String("user", user))
	return p
}
