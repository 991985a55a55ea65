package workflow

import (
	"context"
	"fmt"
	"time"

	"automl_studio/entity"
)

// 审批门：阶段算完的结果先停在 pending_result，不自动生效。
// 审批/拒绝是显式的命令，不做任何自由文本关键字匹配。

// Approve 把停在待审批状态的阶段结果正式生效。只做状态迁移，不重算。
func (r *Runner) Approve(ctx context.Context, projectID string, stage entity.Stage) error {
	logger := r.logger.With("project_id", projectID, "stage", stage)

	release, err := r.locker.TryAcquire(ctx, projectID)
	if err != nil {
		return err
	}
	defer release()

	project, err := r.store.FindByID(ctx, projectID)
	if err != nil {
		return err
	}

	if project.Status != AwaitingStatus(stage) {
		return fmt.Errorf("%w: status is %s", ErrNotAwaitingApproval, project.Status)
	}

	setStageResult(project, stage, project.PendingResult)
	project.PendingResult = nil
	project.AppendEvent(entity.WorkflowEvent{
		Stage:     stage,
		Status:    entity.EventApproved,
		Timestamp: time.Now().UTC(),
		Message:   fmt.Sprintf("%s result approved", stage),
	})
	project.Status = SuccessStatus(stage)

	if err := r.store.Update(ctx, project); err != nil {
		return err
	}
	logger.Info("stage result approved")
	return nil
}

// Reject 丢弃待审批的结果，项目回到该阶段启动前的状态，可以重跑。
func (r *Runner) Reject(ctx context.Context, projectID string, stage entity.Stage, reason string) error {
	logger := r.logger.With("project_id", projectID, "stage", stage)

	release, err := r.locker.TryAcquire(ctx, projectID)
	if err != nil {
		return err
	}
	defer release()

	project, err := r.store.FindByID(ctx, projectID)
	if err != nil {
		return err
	}

	if project.Status != AwaitingStatus(stage) {
		return fmt.Errorf("%w: status is %s", ErrNotAwaitingApproval, project.Status)
	}

	project.PendingResult = nil
	msg := fmt.Sprintf("%s result rejected", stage)
	if reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, reason)
	}
	project.AppendEvent(entity.WorkflowEvent{
		Stage:     stage,
		Status:    entity.EventRejected,
		Timestamp: time.Now().UTC(),
		Message:   msg,
	})
	project.Status = ReadyStatus(stage)

	if err := r.store.Update(ctx, project); err != nil {
		return err
	}
	logger.Info("stage result rejected", "reason", reason)
	return nil
}
