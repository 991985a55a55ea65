package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"automl_studio/entity"
	"automl_studio/trainer"

	"golang.org/x/sync/semaphore"
)

// TrainingOrchestrator 训练阶段：对勾选的每个模型并发启动一个训练任务，
// 单个任务失败不影响其余任务；全部结束后归约出最优模型。
// 它和其它阶段共用同一把项目锁——训练在途时别的阶段启动不了，
// 但训练任务之间没有互斥。
type TrainingOrchestrator struct {
	store    Store
	datasets DatasetStore
	trainer  trainer.Trainer
	workers  int
	logger   *slog.Logger

	mu sync.Mutex // 保护进度回写
}

func NewTrainingOrchestrator(store Store, datasets DatasetStore, t trainer.Trainer, workers int, logger *slog.Logger) *TrainingOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingOrchestrator{
		store:    store,
		datasets: datasets,
		trainer:  t,
		workers:  workers,
		logger:   logger.With("layer", "workflow", "stage", "training"),
	}
}

func (o *TrainingOrchestrator) Stage() entity.Stage {
	return entity.StageTraining
}

func (o *TrainingOrchestrator) Process(ctx context.Context, project *entity.Project) (json.RawMessage, error) {
	selected := SelectedModels(project)
	if len(selected) == 0 {
		return nil, ErrNoModelsSelected
	}

	var analysis entity.AnalysisResult
	if err := json.Unmarshal(project.AnalysisResult, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis result failed: %w", err)
	}
	var pre entity.PreprocessingResult
	if err := json.Unmarshal(project.PreprocessingResult, &pre); err != nil {
		return nil, fmt.Errorf("decode preprocessing result failed: %w", err)
	}

	taskType := analysis.TaskType
	if project.TaskType != nil && *project.TaskType != "" {
		taskType = *project.TaskType
	}
	if project.TargetColumn == nil || project.DatasetID == nil {
		return nil, ErrNoTargetColumn
	}

	dataset, err := o.datasets.FindByID(ctx, *project.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("load linked dataset failed: %w", err)
	}
	table, err := LoadCSV(dataset.FilePath)
	if err != nil {
		return nil, err
	}
	data, err := BuildTrainingData(table, &analysis, &pre, *project.TargetColumn, taskType)
	if err != nil {
		return nil, err
	}

	progress := entity.TrainingProgress{
		TotalModels: len(selected),
		Status:      "starting",
	}
	o.persistProgress(ctx, project, progress)

	// fan-out：每个模型一个 goroutine，worker 数可配，0 表示放开到模型数
	workers := int64(o.workers)
	if workers <= 0 {
		workers = int64(len(selected))
	}
	sem := semaphore.NewWeighted(workers)

	results := make([]entity.TrainingResult, len(selected))
	var wg sync.WaitGroup

	for i, m := range selected {
		wg.Add(1)
		go func(idx int, model entity.ModelSelection) {
			defer wg.Done()
			results[idx] = o.runJob(ctx, sem, project, model, taskType, data, &progress)
		}(i, m)
	}
	wg.Wait()

	// 归约
	successful := 0
	for _, r := range results {
		if r.Status == "completed" {
			successful++
		}
	}
	best := BestResult(results, taskType)

	progress.CompletedModels = len(selected)
	progress.CurrentModel = ""
	if successful > 0 {
		progress.Status = "completed"
	} else {
		progress.Status = "failed"
	}
	o.persistProgress(ctx, project, progress)

	reduced := entity.TrainingResults{
		ModelsTrained:    len(selected),
		ModelsSuccessful: successful,
		BestModel:        best,
		AllResults:       results,
		CompletedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(reduced)
	if err != nil {
		return nil, err
	}

	// 全军覆没才算阶段失败；逐模型明细照样作为 payload 落库
	if successful == 0 {
		return payload, fmt.Errorf("%w: %d models attempted", ErrAllModelsFailed, len(selected))
	}
	return payload, nil
}

func (o *TrainingOrchestrator) runJob(
	ctx context.Context,
	sem *semaphore.Weighted,
	project *entity.Project,
	model entity.ModelSelection,
	taskType string,
	data *trainer.Dataset,
	progress *entity.TrainingProgress,
) entity.TrainingResult {
	logger := o.logger.With("project_id", project.ID, "model_id", model.ModelID)

	result := entity.TrainingResult{
		ModelID:     model.ModelID,
		DisplayName: model.DisplayName,
		TrainedAt:   time.Now().UTC(),
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}
	defer sem.Release(1)

	o.mu.Lock()
	progress.CurrentModel = model.DisplayName
	progress.Status = fmt.Sprintf("training %s", model.DisplayName)
	o.persistProgressLocked(ctx, project, *progress)
	o.mu.Unlock()

	logger.Info("training job started")
	metrics, err := o.trainer.Train(ctx, trainer.Spec{
		ModelID:         model.ModelID,
		DisplayName:     model.DisplayName,
		TaskType:        taskType,
		Hyperparameters: model.Hyperparameters,
	}, data)

	result.TrainedAt = time.Now().UTC()
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		logger.Warn("training job failed", "error", err)
	} else {
		result.Status = "completed"
		result.Metrics = metrics
		logger.Info("training job complete")
	}

	o.mu.Lock()
	progress.CompletedModels++
	o.persistProgressLocked(ctx, project, *progress)
	o.mu.Unlock()

	return result
}

func (o *TrainingOrchestrator) persistProgress(ctx context.Context, project *entity.Project, progress entity.TrainingProgress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persistProgressLocked(ctx, project, progress)
}

// persistProgressLocked 进度是尽力而为的快照，写失败只记日志，不打断训练。
func (o *TrainingOrchestrator) persistProgressLocked(ctx context.Context, project *entity.Project, progress entity.TrainingProgress) {
	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	project.TrainingProgress = data
	if err := o.store.Update(ctx, project); err != nil {
		o.logger.Warn("persist training progress failed", "project_id", project.ID, "error", err)
	}
}

// PrimaryMetric 任务类型对应的主指标。
func PrimaryMetric(taskType string) string {
	if taskType == "regression" {
		return "r2_score"
	}
	return "f1_score"
}

// BestResult 在成功结果里取主指标最大者。分类缺 f1 时退回 accuracy；
// 平局取提交顺序靠前的。
func BestResult(results []entity.TrainingResult, taskType string) *entity.TrainingResult {
	primary := PrimaryMetric(taskType)

	var best *entity.TrainingResult
	bestScore := 0.0
	for i := range results {
		r := &results[i]
		if r.Status != "completed" {
			continue
		}
		score, ok := r.Metrics[primary]
		if !ok && primary == "f1_score" {
			score, ok = r.Metrics["accuracy"]
		}
		if !ok {
			continue
		}
		if best == nil || score > bestScore {
			best = r
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}
