package run

import (
	"time"

	"github.com/John-Robertt/lbxd/internal/config"
	"github.com/John-Robertt/lbxd/internal/domain"
)

// Observer 用于把“运行进度/阶段/用户结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnFilmProgress 在某用户的一部影片补全结束时调用。
	OnFilmProgress(user string, done, total int)
	// OnUserDone 在某用户构建结束（成功或失败）时调用。
	OnUserDone(idx, total int, res domain.UserResult, dur time.Duration)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}
