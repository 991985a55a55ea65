package workflow

import (
	"encoding/json"
	"fmt"

	"automl_studio/entity"
)

// 状态机：status 是"接下来允许发生什么"的唯一依据。
// 每个后台阶段有四个落点：running / success / failed / awaiting_approval，
// model_selection 是同步阶段，不改变项目状态。

// RunningStatus 返回阶段执行中的状态。
func RunningStatus(stage entity.Stage) entity.Status {
	switch stage {
	case entity.StageAnalysis:
		return entity.StatusAnalyzing
	case entity.StagePreprocessing:
		return entity.StatusPreprocessing
	case entity.StageTraining:
		return entity.StatusTraining
	}
	return entity.StatusFailed
}

// SuccessStatus 返回阶段成功落点。
func SuccessStatus(stage entity.Stage) entity.Status {
	switch stage {
	case entity.StageAnalysis:
		return entity.StatusAnalyzed
	case entity.StagePreprocessing:
		return entity.StatusPreprocessed
	case entity.StageTraining:
		return entity.StatusTrained
	}
	return entity.StatusFailed
}

// FailedStatus 返回阶段失败落点。
func FailedStatus(stage entity.Stage) entity.Status {
	switch stage {
	case entity.StageAnalysis:
		return entity.StatusAnalysisFailed
	case entity.StagePreprocessing:
		return entity.StatusPreprocessingFailed
	case entity.StageTraining:
		return entity.StatusTrainingFailed
	}
	return entity.StatusFailed
}

// AwaitingStatus 返回阶段的待审批伪状态。
func AwaitingStatus(stage entity.Stage) entity.Status {
	switch stage {
	case entity.StageAnalysis:
		return entity.StatusAnalysisAwaiting
	case entity.StagePreprocessing:
		return entity.StatusPreprocessingAwaiting
	case entity.StageTraining:
		return entity.StatusTrainingAwaiting
	}
	return entity.StatusFailed
}

// ReadyStatus 返回阶段可以启动时项目应处的状态（审批被拒绝后也回到这里）。
func ReadyStatus(stage entity.Stage) entity.Status {
	switch stage {
	case entity.StageAnalysis:
		return entity.StatusDatasetLinked
	case entity.StagePreprocessing:
		return entity.StatusAnalyzed
	case entity.StageModelSelection, entity.StageTraining:
		return entity.StatusPreprocessed
	}
	return entity.StatusFailed
}

// CanStart 校验 stage 能否从项目当前状态启动。不合法时返回 ErrInvalidTransition
// 或更具体的前置条件错误；项目记录不会被改动。
func CanStart(project *entity.Project, stage entity.Stage) error {
	switch stage {
	case entity.StageAnalysis:
		if project.Status != entity.StatusDatasetLinked && project.Status != entity.StatusAnalysisFailed {
			return transitionErr(project.Status, stage)
		}
		if project.DatasetID == nil || *project.DatasetID == "" {
			return ErrNoDatasetLinked
		}
	case entity.StagePreprocessing:
		if project.Status != entity.StatusAnalyzed && project.Status != entity.StatusPreprocessingFailed {
			return transitionErr(project.Status, stage)
		}
		if project.TargetColumn == nil || *project.TargetColumn == "" {
			return ErrNoTargetColumn
		}
	case entity.StageModelSelection:
		// 同步阶段：预处理完成后可反复执行（重选不推进状态）
		if project.Status != entity.StatusPreprocessed {
			return transitionErr(project.Status, stage)
		}
	case entity.StageTraining:
		if project.Status != entity.StatusPreprocessed && project.Status != entity.StatusTrainingFailed {
			return transitionErr(project.Status, stage)
		}
		if len(SelectedModels(project)) == 0 {
			return ErrNoModelsSelected
		}
	default:
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, stage)
	}
	return nil
}

func transitionErr(status entity.Status, stage entity.Stage) error {
	return fmt.Errorf("%w: cannot start %s from %s", ErrInvalidTransition, stage, status)
}

// SelectedModels 解码候选模型清单并返回勾选的子集，顺序保持清单顺序。
func SelectedModels(project *entity.Project) []entity.ModelSelection {
	if len(project.ModelSelection) == 0 {
		return nil
	}
	var selection entity.ModelSelectionResult
	if err := json.Unmarshal(project.ModelSelection, &selection); err != nil {
		return nil
	}
	var selected []entity.ModelSelection
	for _, m := range selection.Models {
		if m.Selected {
			selected = append(selected, m)
		}
	}
	return selected
}

// IsTerminal 终态：允许重试的 *_failed 也算终态（针对当次尝试）。
func IsTerminal(status entity.Status) bool {
	switch status {
	case entity.StatusAnalysisFailed, entity.StatusPreprocessingFailed,
		entity.StatusTrained, entity.StatusTrainingFailed, entity.StatusFailed:
		return true
	}
	return false
}

// IsRunning 阶段执行中的状态。
func IsRunning(status entity.Status) bool {
	switch status {
	case entity.StatusAnalyzing, entity.StatusPreprocessing, entity.StatusTraining:
		return true
	}
	return false
}

// DeriveStatus 从 workflow_log 的末尾事件推导项目状态。
// 不变式：任何可达状态下 DeriveStatus(project) == project.Status，
// 这保证 status 没有藏在日志之外的隐藏来源。
func DeriveStatus(project *entity.Project) entity.Status {
	events := project.Events()

	// model_selection 不推进状态机，推导时跳过
	var last *entity.WorkflowEvent
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Stage == entity.StageModelSelection {
			continue
		}
		last = &events[i]
		break
	}

	if last == nil {
		if project.DatasetID != nil && *project.DatasetID != "" {
			return entity.StatusDatasetLinked
		}
		return entity.StatusCreated
	}

	switch last.Status {
	case entity.EventStarted:
		return RunningStatus(last.Stage)
	case entity.EventComplete, entity.EventApproved:
		return SuccessStatus(last.Stage)
	case entity.EventError:
		return FailedStatus(last.Stage)
	case entity.EventAwaitingApproval:
		return AwaitingStatus(last.Stage)
	case entity.EventRejected:
		return ReadyStatus(last.Stage)
	}
	return project.Status
}
