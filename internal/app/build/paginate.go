package build

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxPages 是单个用户列表页数的上限；第 1 页报告的页数超过它时截断。
const MaxPages = 1000

// Page 是一页列表 HTML 及其页码（从 1 开始）。
type Page struct {
	Num  int
	HTML []byte
}

// Pages 返回用户全部列表页，按页码升序。
//
// - 第 1 页缺失或出错 => ErrListingUnavailable
// - 页数从第 1 页的分页控件读取；缺失视为 1，超过 MaxPages 截断
// - 第 2..N 页并发抓取（PageWorkers 上限）；单页缺失/出错只记录日志并剔除该页
func (b *Builder) Pages(ctx context.Context, user string) ([]Page, error) {
	first, ok, err := b.fetchListing(ctx, user, 1)
	if err != nil {
		return nil, fmt.Errorf("%w：%s：%w", ErrListingUnavailable, user, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w：%s", ErrListingUnavailable, user)
	}

	last := b.prov.ParseLastPage(first)
	if last < 1 {
		last = 1
	}
	if last > MaxPages {
		b.log.Warn("列表页数超过上限，已截断", zap.String("user", user), zap.Int("reported", last), zap.Int("max", MaxPages))
		last = MaxPages
	}

	slots := make([][]byte, last)
	slots[0] = first

	// 不使用 errgroup.WithContext：单页失败不取消其它页。
	var g errgroup.Group
	g.SetLimit(b.opts.PageWorkers)
	for n := 2; n <= last; n++ {
		n := n
		g.Go(func() error {
			body, ok, err := b.fetchListing(ctx, user, n)
			switch {
			case err != nil:
				b.log.Warn("列表页抓取失败，跳过该页", zap.String("user", user), zap.Int("page", n), zap.Error(err))
			case !ok:
				b.log.Warn("列表页重试耗尽，跳过该页", zap.String("user", user), zap.Int("page", n))
			default:
				slots[n-1] = body
			}
			return nil
		})
	}
	_ = g.Wait()

	pages := make([]Page, 0, last)
	for i, body := range slots {
		if body == nil {
			continue
		}
		pages = append(pages, Page{Num: i + 1, HTML: body})
	}
	b.log.Debug("列表页抓取完成", zap.String("user", user), zap.Int("last", last), zap.Int("pages", len(pages)))
	return pages, nil
}
