package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeNoUsers 表示 CLI 与配置文件都没有给出用户名。
	ErrCodeNoUsers = "config_no_users"
)

const (
	// FileName 是工作目录下自动发现的配置文件名。
	FileName = "lbxd.json"
	// DotEnvName 是工作目录下自动加载的环境变量文件名。
	DotEnvName = ".env"

	DefaultConcurrency    = 8
	DefaultPageWorkers    = 4
	DefaultMaxConnections = 16
	DefaultTimeout        = 20 * time.Second
	DefaultRetryCooldown  = 1 * time.Second
	DefaultRetryMax       = 4
	DefaultFormat         = "html"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "console"
)

// 环境变量覆盖项（优先级：CLI > env > 配置文件 > 默认）。
const (
	EnvBaseURL  = "LBXD_BASE_URL"
	EnvProxyURL = "LBXD_PROXY_URL"
	EnvLogLevel = "LBXD_LOG_LEVEL"
)

// Formats 是支持的输出格式。
var Formats = []string{"html", "md", "json"}

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --with-year=false 必须能覆盖 config.with_year=true。
type CLIArgs struct {
	ConfigPath string

	Users []string

	Formats    []string
	FormatsSet bool

	Output string

	Concurrency    int
	ConcurrencySet bool

	ProxyURL string
	ProxySet bool

	BaseURL    string
	BaseURLSet bool

	WithYear    bool
	WithYearSet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 lbxd.json 的解析结构。
type FileConfig struct {
	Users          []string     `json:"users"`
	Formats        []string     `json:"formats"`
	Output         string       `json:"output"`
	Concurrency    int          `json:"concurrency"`
	PageWorkers    int          `json:"page_workers"`
	MaxConnections int          `json:"max_connections"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	Proxy          *ProxyConfig `json:"proxy"`
	BaseURL        string       `json:"base_url"`
	Retry          *RetryConfig `json:"retry"`
	WithYear       *bool        `json:"with_year"`
	Log            *LogConfig   `json:"log"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// RetryConfig 用指针区分“未设置”与 0（max_retries=0 表示只尝试一次）。
type RetryConfig struct {
	CooldownMS *int `json:"cooldown_ms"`
	MaxRetries *int `json:"max_retries"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 为空表示未读取到配置文件。
	ConfigPath string

	// Users 已去重（保持首次出现顺序）。
	Users   []string
	Formats []string
	// Output 为空时由调用方按“排序后的用户名用 _ 连接”生成。
	Output string

	Concurrency    int
	PageWorkers    int
	MaxConnections int
	Timeout        time.Duration

	ProxyURL string
	BaseURL  string

	RetryCooldown time.Duration
	RetryMax      int

	WithYear bool

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeNoUsers:
		return fmt.Sprintf("%s：至少需要一个 Letterboxd 用户名", e.Code)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadDotEnv 加载 <cwd>/.env（可选；不存在不报错）。已存在的环境变量不会被覆盖。
func LoadDotEnv(cwd string) error {
	p := filepath.Join(cwd, DotEnvName)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(p); err != nil {
		return &Error{Code: ErrCodeInvalid, Path: p, Err: err}
	}
	return nil
}

// LoadEffective 发现并读取配置文件，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试读取 <cwd>/lbxd.json（可选）
//
// lookupEnv 为 nil 时使用 os.LookupEnv。
func LoadEffective(cwd string, cli CLIArgs, lookupEnv func(string) (string, bool)) (EffectiveConfig, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cli, fc, lookupEnv, cfgPath)
}

func merge(cli CLIArgs, fc FileConfig, lookupEnv func(string) (string, bool), cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) error {
		p := cfgPath
		if p == "" {
			p = "<cli/env>"
		}
		return &Error{Code: ErrCodeInvalid, Path: p, Err: err}
	}

	// users：CLI > config
	users := cli.Users
	if len(users) == 0 {
		users = fc.Users
	}
	users = dedupe(users, false)
	if len(users) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeNoUsers, Path: cfgPath}
	}
	for _, u := range users {
		if strings.ContainsAny(u, "/?#") {
			return EffectiveConfig{}, invalid(fmt.Errorf("用户名不合法：%q", u))
		}
	}

	// formats：CLI > config > 默认 html
	formats := []string{DefaultFormat}
	if cli.FormatsSet && len(cli.Formats) > 0 {
		formats = cli.Formats
	} else if len(fc.Formats) > 0 {
		formats = fc.Formats
	}
	formats = dedupe(formats, true)
	for _, f := range formats {
		if !validFormat(f) {
			return EffectiveConfig{}, invalid(fmt.Errorf("输出格式只能是 %s，实际是 %q", strings.Join(Formats, "/"), f))
		}
	}

	output := strings.TrimSpace(cli.Output)
	if output == "" {
		output = strings.TrimSpace(fc.Output)
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	concurrency = clamp(concurrency, DefaultConcurrency, 1, 64)
	pageWorkers := clamp(fc.PageWorkers, DefaultPageWorkers, 1, 32)
	maxConns := clamp(fc.MaxConnections, DefaultMaxConnections, 1, 128)

	timeout := DefaultTimeout
	if fc.TimeoutSeconds < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("timeout_seconds 不能为负数：%d", fc.TimeoutSeconds))
	}
	if fc.TimeoutSeconds > 0 {
		timeout = time.Duration(fc.TimeoutSeconds) * time.Second
	}

	cooldown := DefaultRetryCooldown
	retryMax := DefaultRetryMax
	if fc.Retry != nil {
		if fc.Retry.CooldownMS != nil {
			if *fc.Retry.CooldownMS < 0 {
				return EffectiveConfig{}, invalid(fmt.Errorf("retry.cooldown_ms 不能为负数：%d", *fc.Retry.CooldownMS))
			}
			cooldown = time.Duration(*fc.Retry.CooldownMS) * time.Millisecond
		}
		if fc.Retry.MaxRetries != nil {
			if *fc.Retry.MaxRetries < 0 {
				return EffectiveConfig{}, invalid(fmt.Errorf("retry.max_retries 不能为负数：%d", *fc.Retry.MaxRetries))
			}
			retryMax = *fc.Retry.MaxRetries
		}
	}

	// proxy/base_url/log.level：CLI > env > config
	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = fc.Proxy.URL
	}
	proxyURL = pick(cli.ProxySet, cli.ProxyURL, lookupEnv, EnvProxyURL, proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 无效：%q", proxyURL))
		}
	}

	baseURL := pick(cli.BaseURLSet, cli.BaseURL, lookupEnv, EnvBaseURL, fc.BaseURL)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(fmt.Errorf("base_url 无效：%q", baseURL))
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return EffectiveConfig{}, invalid(fmt.Errorf("base_url 必须是 http/https：%q", baseURL))
		}
		baseURL = strings.TrimRight(baseURL, "/")
	}

	withYear := false
	if cli.WithYearSet {
		withYear = cli.WithYear
	} else if fc.WithYear != nil {
		withYear = *fc.WithYear
	}

	logLevel, logFormat := "", ""
	if fc.Log != nil {
		logLevel = fc.Log.Level
		logFormat = strings.ToLower(strings.TrimSpace(fc.Log.Format))
	}
	logLevel = strings.ToLower(pick(cli.LogLevelSet, cli.LogLevel, lookupEnv, EnvLogLevel, logLevel))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid(fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", logLevel))
	}
	if logFormat == "" {
		logFormat = DefaultLogFormat
	}
	if logFormat != "console" && logFormat != "json" {
		return EffectiveConfig{}, invalid(fmt.Errorf("log.format 只能是 console 或 json，实际是 %q", logFormat))
	}

	return EffectiveConfig{
		ConfigPath:     cfgPath,
		Users:          users,
		Formats:        formats,
		Output:         output,
		Concurrency:    concurrency,
		PageWorkers:    pageWorkers,
		MaxConnections: maxConns,
		Timeout:        timeout,
		ProxyURL:       proxyURL,
		BaseURL:        baseURL,
		RetryCooldown:  cooldown,
		RetryMax:       retryMax,
		WithYear:       withYear,
		LogLevel:       logLevel,
		LogFormat:      logFormat,
	}, nil
}

// pick 按 CLI > env > config 取字符串值（均 TrimSpace）。
func pick(cliSet bool, cliVal string, lookupEnv func(string) (string, bool), envKey, cfgVal string) string {
	if cliSet {
		return strings.TrimSpace(cliVal)
	}
	if v, ok := lookupEnv(envKey); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(cfgVal)
}

// clamp：0 => def；超出 [lo, hi] 截断。
func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func dedupe(in []string, lower bool) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func validFormat(f string) bool {
	for _, x := range Formats {
		if f == x {
			return true
		}
	}
	return false
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
