package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// provider.Fetch* 返回该错误；它不是瞬时错误，不参与重试。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

// IsNotFound 判断 err 是否为 HTTP 404。
func IsNotFound(err error) bool {
	var hs *HTTPStatusError
	return errors.As(err, &hs) && hs.StatusCode == http.StatusNotFound
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d url=%s location=%s", e.StatusCode, e.URL, loc)
}
