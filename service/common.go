package service

import (
	"errors"
	"log/slog"

	"automl_studio/config"
)

var (
	// ErrStageInFlight 项目有阶段在途，删除等破坏性操作被拒绝。
	ErrStageInFlight = errors.New("project has a stage in flight")

	// ErrInvalidRequest 请求参数不合法。
	ErrInvalidRequest = errors.New("invalid request")
)

func svcLogger() *slog.Logger {
	logger := config.EnsureLoggerInitialized()
	if logger == nil {
		return slog.Default().With("layer", "service")
	}
	return logger.With("layer", "service")
}
