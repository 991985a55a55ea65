package service

import (
	"context"
	"encoding/json"
	"errors"

	"automl_studio/config"
	"automl_studio/dao"
	"automl_studio/entity"
	"automl_studio/workflow"
)

// StatusService 轮询端的状态投影。读路径不加锁，直接给数据库快照。
type StatusService struct {
	projects *dao.ProjectDAO
	wf       *WorkflowService
}

func NewStatusService(wf *WorkflowService) *StatusService {
	return &StatusService{projects: dao.NewProjectDAO(), wf: wf}
}

func NewStatusServiceWith(projects *dao.ProjectDAO, wf *WorkflowService) *StatusService {
	return &StatusService{projects: projects, wf: wf}
}

// StatusPayload 轮询响应：状态 + 完整 workflow_log + 已产出的阶段结果。
type StatusPayload struct {
	ProjectID    string                 `json:"project_id"`
	Status       entity.Status          `json:"status"`
	TargetColumn *string                `json:"target_column,omitempty"`
	TaskType     *string                `json:"task_type,omitempty"`
	WorkflowLog  []entity.WorkflowEvent `json:"workflow_log"`

	AnalysisResult      json.RawMessage `json:"analysis_result,omitempty"`
	PreprocessingResult json.RawMessage `json:"preprocessing_result,omitempty"`
	ModelSelection      json.RawMessage `json:"model_selection,omitempty"`
	TrainingProgress    json.RawMessage `json:"training_progress,omitempty"`
	TrainingResult      json.RawMessage `json:"training_result,omitempty"`
	PendingResult       json.RawMessage `json:"pending_result,omitempty"`
}

// GetStatus 返回项目当前进度快照。
// 例外：配置了 auto_analyze_on_poll 时，首次轮询到 dataset_linked 会顺手
// 触发分析，幂等性由 runner 的互斥锁保证（并发轮询只有一个能启动）。
func (s *StatusService) GetStatus(ctx context.Context, projectID string) (*StatusPayload, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if s.shouldAutoAnalyze(project) {
		if err := s.wf.StartAnalysis(ctx, projectID); err != nil {
			if !errors.Is(err, workflow.ErrStageAlreadyRunning) {
				svcLogger().Warn("轮询触发分析失败", "project_id", projectID, "error", err)
			}
		}
		// 重新读一次，把 started 事件和 analyzing 状态带给调用方
		if fresh, err := s.projects.FindByID(ctx, projectID); err == nil {
			project = fresh
		}
	}

	return snapshot(project), nil
}

func (s *StatusService) shouldAutoAnalyze(project *entity.Project) bool {
	return s.wf != nil &&
		config.AppConfig.Workflow.AutoAnalyzeOnPoll &&
		project.Status == entity.StatusDatasetLinked &&
		project.DatasetID != nil
}

func snapshot(project *entity.Project) *StatusPayload {
	events := project.Events()
	if events == nil {
		events = []entity.WorkflowEvent{}
	}
	return &StatusPayload{
		ProjectID:           project.ID,
		Status:              project.Status,
		TargetColumn:        project.TargetColumn,
		TaskType:            project.TaskType,
		WorkflowLog:         events,
		AnalysisResult:      project.AnalysisResult,
		PreprocessingResult: project.PreprocessingResult,
		ModelSelection:      project.ModelSelection,
		TrainingProgress:    project.TrainingProgress,
		TrainingResult:      project.TrainingResult,
		PendingResult:       project.PendingResult,
	}
}

// TrainingStatusPayload 训练专用的窄投影，前端进度条只需要这些。
type TrainingStatusPayload struct {
	ProjectID string          `json:"project_id"`
	Status    entity.Status   `json:"status"`
	Progress  json.RawMessage `json:"training_progress,omitempty"`
	Results   json.RawMessage `json:"training_result,omitempty"`
}

func (s *StatusService) GetTrainingStatus(ctx context.Context, projectID string) (*TrainingStatusPayload, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &TrainingStatusPayload{
		ProjectID: project.ID,
		Status:    project.Status,
		Progress:  project.TrainingProgress,
		Results:   project.TrainingResult,
	}, nil
}
