package workflow

import "errors"

var (
	// ErrInvalidTransition 当前状态不允许请求的阶段，不会自动重试，项目记录保持原样。
	ErrInvalidTransition = errors.New("workflow: invalid transition for current status")

	// ErrStageAlreadyRunning 同一项目已有阶段在执行，调用方应退避并轮询。
	ErrStageAlreadyRunning = errors.New("workflow: a stage is already running for this project")

	// ErrProcessorFailed 阶段处理器执行失败，错误会写入 workflow_log 并反映到 status。
	ErrProcessorFailed = errors.New("workflow: stage processor failed")

	// ErrTimeout 阶段处理器超出执行预算。
	ErrTimeout = errors.New("workflow: stage processor timed out")

	// ErrAllModelsFailed 训练阶段所有模型任务都失败。
	ErrAllModelsFailed = errors.New("workflow: all training jobs failed")

	// ErrNotAwaitingApproval 项目没有停在该阶段的待审批状态。
	ErrNotAwaitingApproval = errors.New("workflow: project is not awaiting approval for this stage")

	// ErrNoDatasetLinked 项目还没有关联数据集。
	ErrNoDatasetLinked = errors.New("workflow: no dataset linked to project")

	// ErrNoTargetColumn 还没有选定目标列。
	ErrNoTargetColumn = errors.New("workflow: target column is not set")

	// ErrNoModelsSelected 候选模型列表为空或没有勾选任何模型。
	ErrNoModelsSelected = errors.New("workflow: no models selected for training")
)
