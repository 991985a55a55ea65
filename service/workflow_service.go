package service

import (
	"context"
	"encoding/json"
	"fmt"

	"automl_studio/config"
	"automl_studio/dao"
	"automl_studio/entity"
	"automl_studio/trainer"
	"automl_studio/workflow"
)

// WorkflowService 把 HTTP 层的动作翻译成 runner 上的阶段执行。
// 状态机校验、互斥和事件写入都在 workflow 包，这里只做参数整形。
type WorkflowService struct {
	projects *dao.ProjectDAO
	datasets *dao.DatasetDAO
	runner   *workflow.Runner
}

// NewWorkflowService 按全局配置装配 runner：Redis 可用时用分布式锁，
// 否则退回进程内锁（单副本部署够用）。
func NewWorkflowService() *WorkflowService {
	projects := dao.NewProjectDAO()
	cfg := config.AppConfig.Workflow

	var locker workflow.Locker = workflow.NewMemoryLocker()
	if config.RedisClient != nil {
		locker = workflow.NewRedisLocker(config.RedisClient, cfg.LockTTL())
	}

	runner := workflow.NewRunner(projects, locker, workflow.RunnerConfig{
		StageTimeout:    cfg.StageTimeout(),
		RequireApproval: cfg.RequireApproval,
		Logger:          config.EnsureLoggerInitialized(),
	})
	return &WorkflowService{
		projects: projects,
		datasets: dao.NewDatasetDAO(),
		runner:   runner,
	}
}

// NewWorkflowServiceWith 测试用：注入自定义 runner 和 DAO。
func NewWorkflowServiceWith(runner *workflow.Runner, projects *dao.ProjectDAO, datasets *dao.DatasetDAO) *WorkflowService {
	return &WorkflowService{projects: projects, datasets: datasets, runner: runner}
}

func (s *WorkflowService) Runner() *workflow.Runner {
	return s.runner
}

func (s *WorkflowService) StartAnalysis(ctx context.Context, projectID string) error {
	return s.runner.Run(ctx, projectID, workflow.NewAnalysisProcessor(s.datasets))
}

// SetTargetColumn 设置目标列并推断/覆盖任务类型。
// 只在分析完成后、训练开始前有效；预处理失败后允许换列重试。
func (s *WorkflowService) SetTargetColumn(ctx context.Context, projectID, column, taskType string) (*entity.Project, error) {
	if column == "" {
		return nil, fmt.Errorf("%w: target_column is required", ErrInvalidRequest)
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != entity.StatusAnalyzed && project.Status != entity.StatusPreprocessingFailed {
		return nil, fmt.Errorf("%w: cannot set target column in status %s", workflow.ErrInvalidTransition, project.Status)
	}

	var analysis entity.AnalysisResult
	if err := json.Unmarshal(project.AnalysisResult, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	var profile *entity.ColumnProfile
	for i := range analysis.ColumnAnalysis {
		if analysis.ColumnAnalysis[i].Name == column {
			profile = &analysis.ColumnAnalysis[i]
			break
		}
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: column %q not found in dataset", ErrInvalidRequest, column)
	}

	if taskType == "" {
		taskType = inferTaskType(&analysis, column, profile)
	}
	if taskType != "classification" && taskType != "regression" {
		return nil, fmt.Errorf("%w: task_type must be classification or regression", ErrInvalidRequest)
	}

	project.TargetColumn = &column
	project.TaskType = &taskType
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	svcLogger().Info("目标列已设置", "project_id", projectID, "target_column", column, "task_type", taskType)
	return project, nil
}

// inferTaskType 优先用分析阶段给出的候选推荐，列不在候选里时按列类型兜底。
func inferTaskType(analysis *entity.AnalysisResult, column string, profile *entity.ColumnProfile) string {
	for _, cand := range analysis.TargetCandidates {
		if cand.Column == column {
			return cand.TaskType
		}
	}
	if profile.DType == "numeric" && profile.UniqueCount > 10 {
		return "regression"
	}
	return "classification"
}

func (s *WorkflowService) StartPreprocessing(ctx context.Context, projectID, mode string, cfg *entity.PreprocessingConfig) error {
	return s.runner.Run(ctx, projectID, workflow.NewPreprocessProcessor(s.datasets, mode, cfg))
}

// SelectModels 同步跑模型选择并返回推荐结果。
func (s *WorkflowService) SelectModels(ctx context.Context, projectID string) (*entity.ModelSelectionResult, error) {
	payload, err := s.runner.RunSync(ctx, projectID, workflow.NewSelectionProcessor())
	if err != nil {
		return nil, err
	}
	var result entity.ModelSelectionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode model selection: %w", err)
	}
	return &result, nil
}

// GetModelSelection 返回当前选择；没跑过模型选择时返回 nil。
func (s *WorkflowService) GetModelSelection(ctx context.Context, projectID string) (*entity.ModelSelectionResult, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(project.ModelSelection) == 0 {
		return nil, nil
	}
	var result entity.ModelSelectionResult
	if err := json.Unmarshal(project.ModelSelection, &result); err != nil {
		return nil, fmt.Errorf("decode model selection: %w", err)
	}
	return &result, nil
}

// UpdateModelSelection 整体替换模型选择。只校验模型在目录里且至少选中一个，
// 让用户可以推翻启发式推荐。
func (s *WorkflowService) UpdateModelSelection(ctx context.Context, projectID string, models []entity.ModelSelection) (*entity.ModelSelectionResult, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(project.ModelSelection) == 0 {
		return nil, fmt.Errorf("%w: run model selection first", workflow.ErrInvalidTransition)
	}
	if project.Status != entity.StatusPreprocessed && project.Status != entity.StatusTrainingFailed {
		return nil, fmt.Errorf("%w: cannot edit model selection in status %s", workflow.ErrInvalidTransition, project.Status)
	}

	var result entity.ModelSelectionResult
	if err := json.Unmarshal(project.ModelSelection, &result); err != nil {
		return nil, fmt.Errorf("decode model selection: %w", err)
	}

	selected := 0
	for _, m := range models {
		if _, ok := workflow.CatalogSpec(result.TaskType, m.ModelID); !ok {
			return nil, fmt.Errorf("%w: unknown model %q for task %s", ErrInvalidRequest, m.ModelID, result.TaskType)
		}
		if m.Selected {
			selected++
		}
	}
	if selected == 0 {
		return nil, fmt.Errorf("%w: at least one model must be selected", ErrInvalidRequest)
	}

	result.Models = models
	data, err := json.Marshal(&result)
	if err != nil {
		return nil, err
	}
	project.ModelSelection = data
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	svcLogger().Info("模型选择已更新", "project_id", projectID, "selected", selected)
	return &result, nil
}

func (s *WorkflowService) Catalog(taskType string) []workflow.ModelSpec {
	return workflow.Catalog(taskType)
}

func (s *WorkflowService) StartTraining(ctx context.Context, projectID string) error {
	orchestrator := workflow.NewTrainingOrchestrator(
		s.projects,
		s.datasets,
		trainer.NewLocal(),
		config.AppConfig.Workflow.TrainingWorkers,
		config.EnsureLoggerInitialized(),
	)
	return s.runner.Run(ctx, projectID, orchestrator)
}

func (s *WorkflowService) Approve(ctx context.Context, projectID string, stage entity.Stage) error {
	return s.runner.Approve(ctx, projectID, stage)
}

func (s *WorkflowService) Reject(ctx context.Context, projectID string, stage entity.Stage, reason string) error {
	return s.runner.Reject(ctx, projectID, stage, reason)
}
