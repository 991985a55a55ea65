package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"automl_studio/entity"
)

// Store 项目记录的读写口子，由 dao.ProjectDAO 实现。
// runner 持锁期间是项目记录唯一的写方。
type Store interface {
	FindByID(ctx context.Context, id string) (*entity.Project, error)
	Update(ctx context.Context, project *entity.Project) error
}

// StageProcessor 一个阶段的实际计算单元，对 runner 不透明。
// 返回的 payload 会被写入该阶段的结果字段；失败时如果 payload 非空
// （比如训练全部失败但逐模型结果仍然有价值），结果同样会被保留。
type StageProcessor interface {
	Stage() entity.Stage
	Process(ctx context.Context, project *entity.Project) (json.RawMessage, error)
}

// Runner 包装一次阶段执行：互斥锁、状态机校验、事件写入、错误翻译。
// 后台阶段是 fire-and-forget：Run 返回即表示阶段已启动，完成与否靠轮询观察。
type Runner struct {
	store           Store
	locker          Locker
	timeout         time.Duration
	requireApproval bool
	logger          *slog.Logger
}

type RunnerConfig struct {
	StageTimeout    time.Duration
	RequireApproval bool
	Logger          *slog.Logger
}

func NewRunner(store Store, locker Locker, cfg RunnerConfig) *Runner {
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:           store,
		locker:          locker,
		timeout:         timeout,
		requireApproval: cfg.RequireApproval,
		logger:          logger.With("layer", "workflow"),
	}
}

// Locker 暴露锁句柄，给"删除前检查是否有在途阶段"这类调用用。
func (r *Runner) Locker() Locker {
	return r.locker
}

// Run 启动一个后台阶段。校验和 started 事件在调用方路径上同步完成，
// 所以返回 nil 就意味着阶段确实启动了；处理器本身在后台执行。
func (r *Runner) Run(ctx context.Context, projectID string, processor StageProcessor) error {
	stage := processor.Stage()
	logger := r.logger.With("project_id", projectID, "stage", stage)

	release, err := r.locker.TryAcquire(ctx, projectID)
	if err != nil {
		logger.Warn("stage start rejected: lock held", "error", err)
		return err
	}

	project, err := r.store.FindByID(ctx, projectID)
	if err != nil {
		release()
		return err
	}

	if err := CanStart(project, stage); err != nil {
		release()
		logger.Warn("stage start rejected", "status", project.Status, "error", err)
		return err
	}

	project.AppendEvent(entity.WorkflowEvent{
		Stage:     stage,
		Status:    entity.EventStarted,
		Timestamp: time.Now().UTC(),
		Message:   fmt.Sprintf("%s started", stage),
	})
	project.Status = RunningStatus(stage)
	project.PendingResult = nil

	if err := r.store.Update(ctx, project); err != nil {
		release()
		return err
	}
	logger.Info("stage started")

	// 后台执行与请求生命周期解耦，超时预算单独计
	go r.execute(projectID, processor, release)
	return nil
}

func (r *Runner) execute(projectID string, processor StageProcessor, release func()) {
	defer release()

	stage := processor.Stage()
	logger := r.logger.With("project_id", projectID, "stage", stage)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	project, err := r.store.FindByID(ctx, projectID)
	if err != nil {
		logger.Error("stage aborted: reload project failed", "error", err)
		return
	}

	payload, procErr := processor.Process(ctx, project)

	// 处理器可能自己持久化过进度，重新拉取最新记录再写终态
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer finishCancel()

	fresh, err := r.store.FindByID(finishCtx, projectID)
	if err != nil {
		logger.Error("stage finish failed: reload project failed", "error", err)
		return
	}

	now := time.Now().UTC()
	if procErr != nil {
		if errors.Is(procErr, context.DeadlineExceeded) {
			procErr = fmt.Errorf("%w: %s exceeded %s budget", ErrTimeout, stage, r.timeout)
		}
		// 部分结果（如训练的逐模型明细）照样落库
		if payload != nil {
			setStageResult(fresh, stage, payload)
		}
		fresh.AppendEvent(entity.WorkflowEvent{
			Stage:     stage,
			Status:    entity.EventError,
			Timestamp: now,
			Error:     procErr.Error(),
		})
		fresh.Status = FailedStatus(stage)
		logger.Error("stage failed", "error", procErr)
	} else if r.requireApproval {
		fresh.PendingResult = payload
		fresh.AppendEvent(entity.WorkflowEvent{
			Stage:     stage,
			Status:    entity.EventAwaitingApproval,
			Timestamp: now,
			Message:   fmt.Sprintf("%s computed, awaiting approval", stage),
		})
		fresh.Status = AwaitingStatus(stage)
		logger.Info("stage parked awaiting approval")
	} else {
		setStageResult(fresh, stage, payload)
		fresh.AppendEvent(entity.WorkflowEvent{
			Stage:     stage,
			Status:    entity.EventComplete,
			Timestamp: now,
			Message:   fmt.Sprintf("%s complete", stage),
		})
		fresh.Status = SuccessStatus(stage)
		logger.Info("stage complete")
	}

	if err := r.store.Update(finishCtx, fresh); err != nil {
		logger.Error("stage finish failed: persist project failed", "error", err)
	}
}

// RunSync 同步执行一个不推进状态机的阶段（模型选择）。
// 锁、校验、事件写入与 Run 一致，但调用方阻塞拿到结果。
func (r *Runner) RunSync(ctx context.Context, projectID string, processor StageProcessor) (json.RawMessage, error) {
	stage := processor.Stage()
	logger := r.logger.With("project_id", projectID, "stage", stage)

	release, err := r.locker.TryAcquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	project, err := r.store.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := CanStart(project, stage); err != nil {
		logger.Warn("stage start rejected", "status", project.Status, "error", err)
		return nil, err
	}

	project.AppendEvent(entity.WorkflowEvent{
		Stage:     stage,
		Status:    entity.EventStarted,
		Timestamp: time.Now().UTC(),
		Message:   fmt.Sprintf("%s started", stage),
	})
	if err := r.store.Update(ctx, project); err != nil {
		return nil, err
	}

	procCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, procErr := processor.Process(procCtx, project)

	now := time.Now().UTC()
	if procErr != nil {
		project.AppendEvent(entity.WorkflowEvent{
			Stage:     stage,
			Status:    entity.EventError,
			Timestamp: now,
			Error:     procErr.Error(),
		})
		if err := r.store.Update(ctx, project); err != nil {
			logger.Error("persist stage error failed", "error", err)
		}
		logger.Error("stage failed", "error", procErr)
		return nil, fmt.Errorf("%w: %v", ErrProcessorFailed, procErr)
	}

	setStageResult(project, stage, payload)
	project.AppendEvent(entity.WorkflowEvent{
		Stage:     stage,
		Status:    entity.EventComplete,
		Timestamp: now,
		Message:   fmt.Sprintf("%s complete", stage),
	})
	if err := r.store.Update(ctx, project); err != nil {
		return nil, err
	}
	logger.Info("stage complete")
	return payload, nil
}

func setStageResult(project *entity.Project, stage entity.Stage, payload json.RawMessage) {
	switch stage {
	case entity.StageAnalysis:
		project.AnalysisResult = payload
	case entity.StagePreprocessing:
		project.PreprocessingResult = payload
	case entity.StageModelSelection:
		project.ModelSelection = payload
	case entity.StageTraining:
		project.TrainingResult = payload
	}
}
