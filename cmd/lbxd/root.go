package main

import (
	"github.com/spf13/cobra"

	"github.com/John-Robertt/lbxd/internal/config"
)

type rootFlags struct {
	configPath  string
	formats     []string
	output      string
	concurrency int
	proxy       string
	baseURL     string
	withYear    bool
	logLevel    string
}

func newRootCommand(c *cli) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "lbxd [flags] user [user...]",
		Short: "比较多个 Letterboxd 用户看过的影片",
		Long: `比较多个 Letterboxd 用户看过的影片：共同看过的影片（附每人的星级/喜欢/影评）
以及每个用户独有的影片。结果写为 html/md/json 文件；stdout 非终端时输出 JSON 报告。`,
		Args:          cobra.ArbitraryArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			return c.compare(cmd.Context(), config.CLIArgs{
				ConfigPath:     f.configPath,
				Users:          args,
				Formats:        f.formats,
				FormatsSet:     fl.Changed("format"),
				Output:         f.output,
				Concurrency:    f.concurrency,
				ConcurrencySet: fl.Changed("concurrency"),
				ProxyURL:       f.proxy,
				ProxySet:       fl.Changed("proxy"),
				BaseURL:        f.baseURL,
				BaseURLSet:     fl.Changed("base-url"),
				WithYear:       f.withYear,
				WithYearSet:    fl.Changed("with-year"),
				LogLevel:       f.logLevel,
				LogLevelSet:    fl.Changed("log-level"),
			})
		},
	}
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)
	// 未知参数、参数值非法等用法错误与配置错误同为退出码 2。
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})

	fl := cmd.Flags()
	fl.StringSliceVarP(&f.formats, "format", "f", nil, "输出格式 html|md|json，可重复（默认 html）")
	fl.StringVarP(&f.output, "output", "o", "", "输出文件名（扩展名按格式替换；默认：排序后的用户名用 _ 连接）")
	fl.StringVar(&f.configPath, "config", "", "配置文件路径（默认读取 ./lbxd.json，可选）")
	fl.IntVar(&f.concurrency, "concurrency", 0, "单个用户内详情页补全的并发数（默认 8）")
	fl.StringVar(&f.proxy, "proxy", "", "HTTP/SOCKS5 代理 URL；--proxy= 关闭代理")
	fl.StringVar(&f.baseURL, "base-url", "", "Letterboxd 站点地址（默认 https://letterboxd.com）")
	fl.BoolVar(&f.withYear, "with-year", false, "为所有影片抓取详情页以补全年份")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别 debug|info|warn|error（默认 warn）")

	return cmd
}
