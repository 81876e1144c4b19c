package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/lbxd/internal/config"
	"github.com/John-Robertt/lbxd/internal/domain"
)

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	p.OnStart(config.EffectiveConfig{Users: []string{"amy", "ghost"}, Formats: []string{"html"}, Concurrency: 8})
	p.OnFilmProgress("amy", 1, 2)
	p.OnUserDone(1, 2, domain.UserResult{Username: "amy", Status: domain.StatusFound, Films: 2}, 1500*time.Millisecond)
	p.OnUserDone(2, 2, domain.UserResult{Username: "ghost", Status: domain.StatusNotFound}, 0)
	p.OnPhaseDone("compare", map[string]any{"found": 1, "common": 2}, 0)
	p.Stop()

	out := buf.String()
	for _, want := range []string{
		"users: amy, ghost",
		"proxy: off",
		"[1/2] amy OK films=2 (1.5s)",
		"[2/2] ghost NOT FOUND",
		"比较: found=1 common=2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("全部用户完成后 ticker 应已停止")
	}
}

func TestProgressUI_ActiveFilms(t *testing.T) {
	p := newProgressUI(&bytes.Buffer{})
	p.OnFilmProgress("zoe", 3, 10)
	p.OnFilmProgress("amy", 1, 4)
	if got := p.activeLocked(); got != " amy=1/4 zoe=3/10" {
		t.Fatalf("activeLocked=%q", got)
	}
}

func TestFormatProxy(t *testing.T) {
	cases := map[string]string{
		"":                         "off",
		"http://u:p@proxy.test:80": "on (http://proxy.test:80, auth=on)",
		"socks5://proxy.test:1080": "on (socks5://proxy.test:1080, auth=off)",
	}
	for in, want := range cases {
		if got := formatProxy(in); got != want {
			t.Fatalf("formatProxy(%q)=%q，期望 %q", in, got, want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("formatElapsed=%q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("truncate=%q", got)
	}
}
