package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEffective_NoUsers(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if Code(err) != ErrCodeNoUsers {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNoUsers, err, Code(err))
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Users: []string{"amy", " bob ", "amy", ""}}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := EffectiveConfig{
		Users:          []string{"amy", "bob"},
		Formats:        []string{"html"},
		Concurrency:    DefaultConcurrency,
		PageWorkers:    DefaultPageWorkers,
		MaxConnections: DefaultMaxConnections,
		Timeout:        DefaultTimeout,
		RetryCooldown:  DefaultRetryCooldown,
		RetryMax:       DefaultRetryMax,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
	if diff := cmp.Diff(want, eff); diff != "" {
		t.Fatalf("默认配置不符合预期 (-want +got)：\n%s", diff)
	}
}

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json", Users: []string{"amy"}}, noEnv)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_FileValues(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"users": ["zoe", "amy"],
		"formats": ["MD", "json", "md"],
		"output": "out/report",
		"concurrency": 500,
		"page_workers": 2,
		"timeout_seconds": 5,
		"retry": {"cooldown_ms": 0, "max_retries": 0},
		"with_year": true,
		"log": {"level": "INFO", "format": "json"}
	}`))

	eff, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("期望读取 %q，实际=%q", filepath.Join(cwd, FileName), eff.ConfigPath)
	}
	if diff := cmp.Diff([]string{"zoe", "amy"}, eff.Users); diff != "" {
		t.Fatalf("users 不符合预期：\n%s", diff)
	}
	if diff := cmp.Diff([]string{"md", "json"}, eff.Formats); diff != "" {
		t.Fatalf("formats 不符合预期：\n%s", diff)
	}
	if eff.Concurrency != 64 {
		t.Fatalf("concurrency 应截断到 64，实际=%d", eff.Concurrency)
	}
	if eff.PageWorkers != 2 || eff.Timeout != 5*time.Second {
		t.Fatalf("page_workers/timeout 不正确：%+v", eff)
	}
	if eff.RetryCooldown != 0 || eff.RetryMax != 0 {
		t.Fatalf("retry 显式 0 应保留，实际 cooldown=%v max=%d", eff.RetryCooldown, eff.RetryMax)
	}
	if !eff.WithYear || eff.LogLevel != "info" || eff.LogFormat != "json" {
		t.Fatalf("with_year/log 不正确：%+v", eff)
	}
	if eff.Output != "out/report" {
		t.Fatalf("output 不正确：%q", eff.Output)
	}
}

func TestLoadEffective_CLIOverridesFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"users":["zoe"],"formats":["md"],"with_year":true,"concurrency":3}`))

	eff, err := LoadEffective(cwd, CLIArgs{
		Users:          []string{"amy"},
		Formats:        []string{"json"},
		FormatsSet:     true,
		WithYear:       false,
		WithYearSet:    true, // --with-year=false
		Concurrency:    0,
		ConcurrencySet: true,
	}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Users[0] != "amy" || len(eff.Users) != 1 {
		t.Fatalf("CLI users 应覆盖配置文件：%v", eff.Users)
	}
	if eff.Formats[0] != "json" || eff.WithYear {
		t.Fatalf("CLI 覆盖未生效：%+v", eff)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("concurrency=0 应回到默认值，实际=%d", eff.Concurrency)
	}
}

func TestLoadEffective_EnvPrecedence(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"users": ["amy"],
		"base_url": "https://file.example",
		"proxy": {"url": "http://file-proxy:8080"},
		"log": {"level": "error"}
	}`))
	env := envOf(map[string]string{
		EnvBaseURL:  "http://env.example/",
		EnvProxyURL: "socks5://env-proxy:1080",
		EnvLogLevel: "debug",
	})

	eff, err := LoadEffective(cwd, CLIArgs{}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.BaseURL != "http://env.example" || eff.ProxyURL != "socks5://env-proxy:1080" || eff.LogLevel != "debug" {
		t.Fatalf("env 应覆盖配置文件：%+v", eff)
	}

	eff, err = LoadEffective(cwd, CLIArgs{
		BaseURL:     "https://cli.example",
		BaseURLSet:  true,
		ProxyURL:    "",
		ProxySet:    true, // --proxy= 显式关闭代理
		LogLevel:    "warn",
		LogLevelSet: true,
	}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.BaseURL != "https://cli.example" || eff.ProxyURL != "" || eff.LogLevel != "warn" {
		t.Fatalf("CLI 应覆盖 env：%+v", eff)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"bad json", `{`},
		{"bad format", `{"users":["a"],"formats":["pdf"]}`},
		{"bad proxy", `{"users":["a"],"proxy":{"url":"127.0.0.1:8080"}}`},
		{"bad base url", `{"users":["a"],"base_url":"ftp://x"}`},
		{"negative timeout", `{"users":["a"],"timeout_seconds":-1}`},
		{"negative retries", `{"users":["a"],"retry":{"max_retries":-1}}`},
		{"bad log level", `{"users":["a"],"log":{"level":"trace"}}`},
		{"bad log format", `{"users":["a"],"log":{"format":"xml"}}`},
		{"bad username", `{"users":["a/b"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(tc.json))

			_, err := LoadEffective(cwd, CLIArgs{}, noEnv)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_ExplicitConfigPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "conf", "x.json"), []byte(`{"users":["amy"]}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "conf/x.json"}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, "conf", "x.json") {
		t.Fatalf("config 路径不正确：%q", eff.ConfigPath)
	}
}

func TestLoadDotEnv(t *testing.T) {
	cwd := t.TempDir()
	if err := LoadDotEnv(cwd); err != nil {
		t.Fatalf("缺少 .env 不应报错：%v", err)
	}

	const key = "LBXD_TEST_DOTENV_ONLY"
	writeFile(t, filepath.Join(cwd, DotEnvName), []byte(key+"=from-dotenv\n"))
	t.Setenv(key, "")
	os.Unsetenv(key)

	if err := LoadDotEnv(cwd); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Fatalf("期望读到 .env 中的值，实际=%q", got)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll 失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile 失败：%v", err)
	}
}
