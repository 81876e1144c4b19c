package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/John-Robertt/lbxd/internal/app/run"
	"github.com/John-Robertt/lbxd/internal/config"
	"github.com/John-Robertt/lbxd/internal/domain"
	"github.com/John-Robertt/lbxd/internal/infra/fsx"
	"github.com/John-Robertt/lbxd/internal/infra/httpx"
	"github.com/John-Robertt/lbxd/internal/infra/logx"
	"github.com/John-Robertt/lbxd/internal/provider/letterboxd"
	"github.com/John-Robertt/lbxd/internal/render"
)

// errReported 表示结果已经输出给用户（main 不再重复打印）。
var errReported = errors.New("结果已输出")

// exitError 携带进程退出码。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}

// cli 聚合 CLI 的外部环境，便于测试替换。
type cli struct {
	stdout io.Writer
	stderr io.Writer

	getwd      func() (string, error)
	lookupEnv  func(string) (string, bool)
	isTerminal func(w io.Writer) bool
}

func newCLI() *cli {
	return &cli{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		getwd:      os.Getwd,
		lookupEnv:  os.LookupEnv,
		isTerminal: isTerminal,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *cli) compare(ctx context.Context, args config.CLIArgs) error {
	cwd, err := c.getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}
	if err := config.LoadDotEnv(cwd); err != nil {
		return &exitError{code: 2, err: err}
	}
	eff, err := config.LoadEffective(cwd, args, c.lookupEnv)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	log, err := logx.New(eff.LogLevel, eff.LogFormat)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	defer func() { _ = log.Sync() }()

	client, err := httpx.NewClient(httpx.Options{
		ProxyURL:        eff.ProxyURL,
		Timeout:         eff.Timeout,
		MaxConnsPerHost: eff.MaxConnections,
	})
	if err != nil {
		return &exitError{code: 2, err: fmt.Errorf("%s：proxy.url 无效：%w", config.ErrCodeInvalid, err)}
	}
	defer client.CloseIdleConnections()

	progressW, interactive := c.pickProgressWriter()
	var obs run.Observer
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		obs = ui
	}

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{
		Provider: letterboxd.Provider{BaseURL: eff.BaseURL},
		Client:   client,
		Logger:   log,
	}, obs)
	if ui != nil {
		ui.Stop()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, u := range rr.Users {
		if u.Status == domain.StatusNotFound {
			fmt.Fprintf(c.stderr, "Could not find user %s\n", u.Username)
		}
	}

	var written []string
	if rr.Summary.Found > 0 {
		written, err = writeOutputs(cwd, eff, rr)
		if err != nil {
			log.Error("写入输出文件失败", zap.Error(err))
			c.emitReport(rr, written)
			return &exitError{code: 1, err: err}
		}
	}

	c.emitReport(rr, written)
	if rr.Summary.Found == 0 || rr.Summary.Failed > 0 {
		return &exitError{code: 1, err: errReported}
	}
	return nil
}

// writeOutputs 按格式依次原子写入输出文件，返回已写入的路径。
func writeOutputs(cwd string, eff config.EffectiveConfig, rr domain.CompareReport) ([]string, error) {
	base := eff.Output
	if base == "" {
		base = render.DefaultBase(rr.FoundUsers())
	}
	if !filepath.IsAbs(base) {
		base = filepath.Join(cwd, base)
	}

	written := make([]string, 0, len(eff.Formats))
	for _, format := range eff.Formats {
		b, err := render.Render(format, rr)
		if err != nil {
			return written, err
		}
		p := render.OutputPath(base, format)
		if err := fsx.WriteFileAtomic(p, b); err != nil {
			return written, fmt.Errorf("写入 %s 失败：%w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

// emitReport：stdout 是终端时输出汇总表与文件位置；否则 stdout 只输出一个 CompareReport JSON。
func (c *cli) emitReport(rr domain.CompareReport, written []string) {
	if c.isTerminal(c.stdout) {
		fmt.Fprintln(c.stdout, render.SummaryTable(rr))
		for _, p := range written {
			fmt.Fprintf(c.stdout, "output: %s\n", p)
		}
		return
	}

	b, err := render.JSON(rr)
	if err != nil {
		fmt.Fprintf(c.stderr, "编码报告失败：%v\n", err)
		return
	}
	_, _ = c.stdout.Write(b)
	fmt.Fprintf(c.stderr, "完成：found=%d not_found=%d failed=%d common=%d\n",
		rr.Summary.Found, rr.Summary.NotFound, rr.Summary.Failed, rr.Summary.Common,
	)
	for _, p := range written {
		fmt.Fprintf(c.stderr, "output: %s\n", p)
	}
}

func (c *cli) pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if c.isTerminal(c.stderr) {
		return c.stderr, true
	}
	return nil, false
}
