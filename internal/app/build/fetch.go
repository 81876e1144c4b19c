package build

import (
	"context"

	"go.uber.org/zap"

	"github.com/John-Robertt/lbxd/internal/infra/retry"
	"github.com/John-Robertt/lbxd/internal/provider"
)

// do 发起一次请求：连接上限 -> 有界重试。
// 返回值与 retry.Do 一致：ok=false && err==nil 表示重试耗尽（缺失）。
func (b *Builder) do(ctx context.Context, p retry.Policy, get func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	return retry.Do(ctx, p, func(ctx context.Context) ([]byte, error) {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer b.sem.Release(1)
		return get(ctx)
	})
}

func (b *Builder) fetchListing(ctx context.Context, user string, page int) ([]byte, bool, error) {
	p := b.policy("listing", user)
	p.Logger = p.Logger.With(zap.Int("page", page))
	body, ok, err := b.do(ctx, p, func(ctx context.Context) ([]byte, error) {
		body, _, err := b.prov.FetchListing(ctx, b.client, user, page)
		return body, err
	})
	if err != nil {
		return nil, false, b.stageErr("fetch", err)
	}
	return body, ok, nil
}

type detailResult struct {
	d  provider.FilmDetail
	ok bool
}

// filmDetail 获取并解析一部影片的详情页：缓存 -> singleflight（同 key 并发合并）-> 抓取 -> 解析。
//
// 同一 slug 可能在分页抓取期间因列表变动出现在相邻两页，两份条目都会走到这里；
// 缓存与 singleflight 保证它们只请求一次。缓存只保存解析结果，不保存页面 body。
//
// 错误是 *provider.Error，Stage 为 "fetch" 或 "parse"。
func (b *Builder) filmDetail(ctx context.Context, user, filmID string) (provider.FilmDetail, bool, error) {
	key := user + "/" + filmID
	if d, ok := b.opts.Details.Get(key); ok {
		return d, true, nil
	}

	v, err, _ := b.sf.Do(key, func() (any, error) {
		if d, ok := b.opts.Details.Get(key); ok {
			return detailResult{d: d, ok: true}, nil
		}
		p := b.policy("film", user)
		p.Logger = p.Logger.With(zap.String("film", filmID))
		html, ok, err := b.do(ctx, p, func(ctx context.Context) ([]byte, error) {
			body, _, err := b.prov.FetchFilm(ctx, b.client, user, filmID)
			return body, err
		})
		if err != nil {
			return detailResult{}, b.stageErr("fetch", err)
		}
		if !ok {
			return detailResult{}, nil
		}
		d, err := b.prov.ParseFilm(html)
		if err != nil {
			return detailResult{}, b.stageErr("parse", err)
		}
		b.opts.Details.Put(key, d)
		return detailResult{d: d, ok: true}, nil
	})
	if err != nil {
		return provider.FilmDetail{}, false, err
	}
	r := v.(detailResult)
	return r.d, r.ok, nil
}

func (b *Builder) stageErr(stage string, err error) error {
	return &provider.Error{Provider: b.prov.Name(), Stage: stage, Err: err}
}
