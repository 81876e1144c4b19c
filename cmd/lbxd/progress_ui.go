package main

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/lbxd/internal/app/run"
	"github.com/John-Robertt/lbxd/internal/config"
	"github.com/John-Robertt/lbxd/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出（写到 stderr，不污染 stdout）。
// keepalive：长时间没有用户完成时，定期打印各用户的补全进度。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	found int
	fail  int

	// films 记录每个用户的补全进度 [done, total]。
	films map[string][2]int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		films:              map[string][2]int{},
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = len(eff.Users)

	fmt.Fprintf(p.w, "[%s] lbxd %s\n", now.Format("15:04:05"), version)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  users: %s\n", strings.Join(eff.Users, ", "))
	fmt.Fprintf(p.w, "  formats: %s\n", strings.Join(eff.Formats, ", "))
	fmt.Fprintf(p.w, "  concurrency: %d (pages=%d, connections=%d)\n", eff.Concurrency, eff.PageWorkers, eff.MaxConnections)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if strings.TrimSpace(eff.BaseURL) != "" {
		fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.BaseURL, 120))
	}
	fmt.Fprintf(p.w, "  with_year: %s\n", onOff(eff.WithYear))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	if p.total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnFilmProgress(user string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.films[user] = [2]int{done, total}
}

func (p *progressUI) OnUserDone(idx, total int, res domain.UserResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	delete(p.films, res.Username)

	switch res.Status {
	case domain.StatusFound:
		p.found++
		fmt.Fprintf(p.w, "[%d/%d] %s OK films=%d (%s)\n",
			idx, total, res.Username, res.Films, formatShortDuration(dur),
		)
	case domain.StatusNotFound:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s NOT FOUND (%s)\n",
			idx, total, res.Username, formatShortDuration(dur),
		)
	default:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, res.Username, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "compare":
		fmt.Fprintf(p.w, "\n比较: found=%d common=%d (%s)\n",
			intField(fields, "found"), intField(fields, "common"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

// Stop 停止 keepalive ticker（可重复调用）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stopCh := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: users=%d/%d ok=%d fail=%d%s elapsed=%s\n",
						p.done, p.total, p.found, p.fail, p.activeLocked(), formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

// activeLocked 返回“ user=done/total ...”形式的在途补全进度（按用户名排序）。
func (p *progressUI) activeLocked() string {
	if len(p.films) == 0 {
		return ""
	}
	users := make([]string, 0, len(p.films))
	for u := range p.films {
		users = append(users, u)
	}
	sort.Strings(users)

	var b strings.Builder
	for _, u := range users {
		f := p.films[u]
		fmt.Fprintf(&b, " %s=%d/%d", u, f[0], f[1])
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
