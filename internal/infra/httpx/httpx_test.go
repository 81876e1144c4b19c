package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewClient(Options{MaxConnsPerHost: 8})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
	if tr.Base.MaxConnsPerHost != 8 {
		t.Fatalf("期望 MaxConnsPerHost=8，实际 %d", tr.Base.MaxConnsPerHost)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %v，实际 %v", DefaultTimeout, c.Timeout)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, err := NewClient(Options{ProxyURL: "127.0.0.1"}); err == nil {
		t.Fatalf("缺少 scheme 的代理地址应报错")
	}
}

func TestGet_SetsUserAgentAndReturnsStatus(t *testing.T) {
	uaCh := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uaCh <- r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	c, err := NewClient(Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer c.CloseIdleConnections()

	status, body, err := Get(context.Background(), c, srv.URL+"/ok")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if status != http.StatusOK || string(body) != "hello" {
		t.Fatalf("期望 200 hello，实际 %d %q", status, string(body))
	}
	gotUA := <-uaCh
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Fatalf("期望来自 UA 池的 User-Agent，实际 %q", gotUA)
	}

	status, _, err = Get(context.Background(), c, srv.URL+"/missing")
	if err != nil {
		t.Fatalf("非 2xx 不应视为传输错误：%v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("期望 404，实际 %d", status)
	}
}

func TestGet_ConnectionRefusedIsTransient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen 失败：%v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c, _ := NewClient(Options{Timeout: 2 * time.Second})
	_, _, err = Get(context.Background(), c, "http://"+addr+"/")
	if err == nil {
		t.Fatalf("期望连接失败")
	}
	if !IsTransient(err) {
		t.Fatalf("连接被拒绝应视为瞬时错误：%v", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"reset", &url.Error{Op: "Get", URL: "x", Err: syscall.ECONNRESET}, true},
		{"timeout", &url.Error{Op: "Get", URL: "x", Err: timeoutErr{}}, true},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{"plain", errors.New("malformed html"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s：IsTransient=%v，期望 %v", tc.name, got, tc.want)
		}
	}
}
