package letterboxd

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/lbxd/internal/infra/httpx"
	providerx "github.com/John-Robertt/lbxd/internal/provider"
)

// DefaultBaseURL 是 Letterboxd 的站点根地址。
const DefaultBaseURL = "https://letterboxd.com"

// Provider 实现 Letterboxd 的页面定位与 HTML 解析。
//
// 约束：
// - URL 模板：{base}/{user}/ 、{base}/{user}/films/page/{n}/ 、{base}/{user}/film/{id}/
// - Fetch* 不做缓存/重试/限速（由上层统一控制）
// - Parse* 必须是纯函数（只依赖输入 html）
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL；测试里指向 httptest server。
	BaseURL string
}

var _ providerx.Provider = Provider{}

func (Provider) Name() string { return "letterboxd" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// ProfileURL 返回用户主页地址。
func (p Provider) ProfileURL(user string) string {
	return p.baseURL() + "/" + url.PathEscape(user) + "/"
}

// ListingURL 返回“已看影片”列表第 page 页的地址（page 从 1 开始）。
func (p Provider) ListingURL(user string, page int) string {
	if page < 1 {
		page = 1
	}
	return p.baseURL() + "/" + url.PathEscape(user) + "/films/page/" + strconv.Itoa(page) + "/"
}

// FilmURL 返回某用户某部影片的详情页地址（含该用户自己的影评）。
func (p Provider) FilmURL(user, filmID string) string {
	return p.baseURL() + "/" + url.PathEscape(user) + "/film/" + url.PathEscape(filmID) + "/"
}

func (p Provider) Exists(ctx context.Context, c *http.Client, user string) (bool, error) {
	if strings.TrimSpace(user) == "" {
		return false, errors.New("username 不能为空")
	}
	status, _, err := httpx.Get(ctx, c, p.ProfileURL(user))
	if err != nil {
		return false, err
	}
	return status >= 200 && status < 300, nil
}

func (p Provider) FetchListing(ctx context.Context, c *http.Client, user string, page int) ([]byte, string, error) {
	if strings.TrimSpace(user) == "" {
		return nil, "", errors.New("username 不能为空")
	}
	u := p.ListingURL(user, page)
	b, err := fetchURL(ctx, c, u)
	return b, u, err
}

func (p Provider) FetchFilm(ctx context.Context, c *http.Client, user, filmID string) ([]byte, string, error) {
	if strings.TrimSpace(user) == "" {
		return nil, "", errors.New("username 不能为空")
	}
	if strings.TrimSpace(filmID) == "" {
		return nil, "", errors.New("film id 不能为空")
	}
	u := p.FilmURL(user, filmID)
	b, err := fetchURL(ctx, c, u)
	return b, u, err
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	status, b, err := httpx.Get(ctx, c, u)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &providerx.HTTPStatusError{URL: u, StatusCode: status}
	}
	return b, nil
}
