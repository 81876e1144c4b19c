package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/John-Robertt/lbxd/internal/domain"
)

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与 domain.Film。
//
// 约束：
// - Fetch* 不做缓存、不做重试、不做限速（这些由 build 层统一实现）
// - Fetch* 对非 2xx 返回 *HTTPStatusError；传输层错误原样返回（由上层判断是否可重试）
// - Parse* 必须是纯函数：相同输入 => 相同输出；结构缺失降级为默认值而不是报错
type Provider interface {
	Name() string

	// Exists 对用户主页发起一次 GET：2xx => true；其它状态 => false；传输失败 => err。
	Exists(ctx context.Context, c *http.Client, user string) (bool, error)
	FetchListing(ctx context.Context, c *http.Client, user string, page int) (html []byte, pageURL string, err error)
	FetchFilm(ctx context.Context, c *http.Client, user, filmID string) (html []byte, pageURL string, err error)

	// ParseLastPage 返回分页控件中的最后页码；缺失或无法解析时返回 1。
	ParseLastPage(html []byte) int
	ParseListing(html []byte) ([]domain.Film, error)
	ParseFilm(html []byte) (FilmDetail, error)
}

// FilmDetail 是某用户某部影片详情页上能提取到的信息。
//
// 约束：
// - ReviewFound=false 表示页面上没有影评描述（结构缺失），此时 Review=="" 且 Spoiler=false
// - Year==0 表示无法从页面标题提取年份
type FilmDetail struct {
	Title       string
	Year        int
	ReviewFound bool
	Review      string
	Spoiler     bool
}

// Error 是 provider 阶段的可追溯错误，Stage 标出出错的环节，用于日志定位。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "exists" / "fetch" / "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
