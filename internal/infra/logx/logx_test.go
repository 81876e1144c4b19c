package logx

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_LevelAndFormat(t *testing.T) {
	l, err := New("debug", "json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("期望启用 debug 级别")
	}

	l, err = New("", "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("默认级别应为 warn")
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("loud", "console"); err == nil {
		t.Fatalf("非法 level 应报错")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("非法 format 应报错")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) 不应返回 nil")
	}
}
