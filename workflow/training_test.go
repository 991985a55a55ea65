package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"automl_studio/entity"
	"automl_studio/trainer"
)

type memDatasets struct {
	datasets map[string]*entity.Dataset
}

func (s *memDatasets) FindByID(_ context.Context, id string) (*entity.Dataset, error) {
	d, ok := s.datasets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

// scriptedTrainer 按 model_id 返回预设的指标或错误。
type scriptedTrainer struct {
	metrics map[string]map[string]float64
	errs    map[string]error
}

func (t *scriptedTrainer) Train(_ context.Context, spec trainer.Spec, _ *trainer.Dataset) (map[string]float64, error) {
	if err, ok := t.errs[spec.ModelID]; ok {
		return nil, err
	}
	return t.metrics[spec.ModelID], nil
}

func writeTestCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "x1,x2,y\n"
	for i := 0; i < 20; i++ {
		content += fmt.Sprintf("%d,%d,%d\n", i, i*2, i*3+1)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func trainableProject(t *testing.T, models []entity.ModelSelection) *entity.Project {
	t.Helper()

	analysis := entity.AnalysisResult{
		TaskType: "regression",
		ColumnAnalysis: []entity.ColumnProfile{
			{Name: "x1", DType: "numeric"},
			{Name: "x2", DType: "numeric"},
			{Name: "y", DType: "numeric"},
		},
	}
	analysisJSON, err := json.Marshal(&analysis)
	require.NoError(t, err)

	pre := entity.PreprocessingResult{
		Mode: "auto",
		Config: entity.PreprocessingConfig{
			MissingStrategy: "fill_median",
			Normalization:   "none",
			TrainRatio:      0.8,
		},
		FeatureNames: []string{"x1", "x2"},
	}
	preJSON, err := json.Marshal(&pre)
	require.NoError(t, err)

	selection := entity.ModelSelectionResult{TaskType: "regression", Models: models}
	selectionJSON, err := json.Marshal(&selection)
	require.NoError(t, err)

	taskType := "regression"
	return &entity.Project{
		ID:                  "p1",
		Status:              entity.StatusTraining,
		DatasetID:           strptr("ds-1"),
		TargetColumn:        strptr("y"),
		TaskType:            &taskType,
		AnalysisResult:      analysisJSON,
		PreprocessingResult: preJSON,
		ModelSelection:      selectionJSON,
	}
}

func TestTrainingPartialFailure(t *testing.T) {
	models := []entity.ModelSelection{
		{ModelID: "linear_regression", DisplayName: "Linear Regression", Selected: true},
		{ModelID: "ridge", DisplayName: "Ridge Regression", Selected: true},
		{ModelID: "knn_reg", DisplayName: "KNN Regressor", Selected: true},
	}
	project := trainableProject(t, models)
	store := newMemStore(project)
	datasets := &memDatasets{datasets: map[string]*entity.Dataset{
		"ds-1": {ID: "ds-1", FilePath: writeTestCSV(t)},
	}}
	scripted := &scriptedTrainer{
		metrics: map[string]map[string]float64{
			"linear_regression": {"r2_score": 0.81, "rmse": 1.2},
			"knn_reg":           {"r2_score": 0.77, "rmse": 1.5},
		},
		errs: map[string]error{
			"ridge": errors.New("singular matrix"),
		},
	}

	o := NewTrainingOrchestrator(store, datasets, scripted, 2, nil)
	payload, err := o.Process(context.Background(), project)
	require.NoError(t, err, "one failed model must not fail the stage")

	var reduced entity.TrainingResults
	require.NoError(t, json.Unmarshal(payload, &reduced))

	assert.Equal(t, 3, reduced.ModelsTrained)
	assert.Equal(t, 2, reduced.ModelsSuccessful)
	require.NotNil(t, reduced.BestModel)
	assert.Equal(t, "linear_regression", reduced.BestModel.ModelID)
	assert.InDelta(t, 0.81, reduced.BestModel.Metrics["r2_score"], 1e-9)

	// 结果按提交顺序排列，失败的任务带错误信息
	require.Len(t, reduced.AllResults, 3)
	assert.Equal(t, "linear_regression", reduced.AllResults[0].ModelID)
	assert.Equal(t, "ridge", reduced.AllResults[1].ModelID)
	assert.Equal(t, "failed", reduced.AllResults[1].Status)
	assert.Contains(t, reduced.AllResults[1].Error, "singular matrix")
	assert.Equal(t, "knn_reg", reduced.AllResults[2].ModelID)

	// 进度收敛
	p := store.get(t, "p1")
	var progress entity.TrainingProgress
	require.NoError(t, json.Unmarshal(p.TrainingProgress, &progress))
	assert.Equal(t, 3, progress.TotalModels)
	assert.Equal(t, 3, progress.CompletedModels)
	assert.Equal(t, "completed", progress.Status)
}

func TestTrainingAllModelsFailed(t *testing.T) {
	models := []entity.ModelSelection{
		{ModelID: "linear_regression", DisplayName: "Linear Regression", Selected: true},
		{ModelID: "ridge", DisplayName: "Ridge Regression", Selected: true},
	}
	project := trainableProject(t, models)
	store := newMemStore(project)
	datasets := &memDatasets{datasets: map[string]*entity.Dataset{
		"ds-1": {ID: "ds-1", FilePath: writeTestCSV(t)},
	}}
	scripted := &scriptedTrainer{errs: map[string]error{
		"linear_regression": errors.New("diverged"),
		"ridge":             errors.New("diverged"),
	}}

	o := NewTrainingOrchestrator(store, datasets, scripted, 2, nil)
	payload, err := o.Process(context.Background(), project)

	assert.ErrorIs(t, err, ErrAllModelsFailed)
	require.NotNil(t, payload, "per-model detail survives total failure")

	var reduced entity.TrainingResults
	require.NoError(t, json.Unmarshal(payload, &reduced))
	assert.Equal(t, 2, reduced.ModelsTrained)
	assert.Equal(t, 0, reduced.ModelsSuccessful)
	assert.Nil(t, reduced.BestModel)

	p := store.get(t, "p1")
	var progress entity.TrainingProgress
	require.NoError(t, json.Unmarshal(p.TrainingProgress, &progress))
	assert.Equal(t, "failed", progress.Status)
}

func TestPrimaryMetric(t *testing.T) {
	assert.Equal(t, "r2_score", PrimaryMetric("regression"))
	assert.Equal(t, "f1_score", PrimaryMetric("classification"))
}

func TestBestResult(t *testing.T) {
	t.Run("skips failed results", func(t *testing.T) {
		results := []entity.TrainingResult{
			{ModelID: "a", Status: "failed"},
			{ModelID: "b", Status: "completed", Metrics: map[string]float64{"r2_score": 0.5}},
		}
		best := BestResult(results, "regression")
		require.NotNil(t, best)
		assert.Equal(t, "b", best.ModelID)
	})

	t.Run("tie keeps earliest submission", func(t *testing.T) {
		results := []entity.TrainingResult{
			{ModelID: "a", Status: "completed", Metrics: map[string]float64{"r2_score": 0.9}},
			{ModelID: "b", Status: "completed", Metrics: map[string]float64{"r2_score": 0.9}},
		}
		best := BestResult(results, "regression")
		require.NotNil(t, best)
		assert.Equal(t, "a", best.ModelID)
	})

	t.Run("falls back to accuracy without f1", func(t *testing.T) {
		results := []entity.TrainingResult{
			{ModelID: "a", Status: "completed", Metrics: map[string]float64{"accuracy": 0.7}},
			{ModelID: "b", Status: "completed", Metrics: map[string]float64{"f1_score": 0.6}},
		}
		best := BestResult(results, "classification")
		require.NotNil(t, best)
		assert.Equal(t, "a", best.ModelID)
	})

	t.Run("nil when nothing succeeded", func(t *testing.T) {
		results := []entity.TrainingResult{
			{ModelID: "a", Status: "failed"},
			{ModelID: "b", Status: "failed"},
		}
		assert.Nil(t, BestResult(results, "regression"))
	})
}
