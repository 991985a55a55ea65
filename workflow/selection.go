package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"automl_studio/entity"
)

// ModelSpec 模型目录中的一条。目录是静态的，按任务类型分两张。
type ModelSpec struct {
	ID            string                 `json:"id"`
	DisplayName   string                 `json:"display_name"`
	Description   string                 `json:"description"`
	BestFor       []string               `json:"best_for"`
	Limitations   []string               `json:"limitations"`
	Complexity    string                 `json:"complexity"`     // low | medium | high
	TrainingSpeed string                 `json:"training_speed"` // very_fast | fast | medium | slow
	DefaultParams map[string]interface{} `json:"default_params"`
}

var ClassificationCatalog = []ModelSpec{
	{
		ID: "logistic_regression", DisplayName: "Logistic Regression",
		Description: "Fast, interpretable linear model for classification",
		BestFor:     []string{"binary classification", "interpretability", "baseline"},
		Limitations: []string{"non-linear relationships"},
		Complexity:  "low", TrainingSpeed: "fast",
		DefaultParams: map[string]interface{}{"max_iter": 1000},
	},
	{
		ID: "decision_tree", DisplayName: "Decision Tree",
		Description: "Tree-based model with high interpretability",
		BestFor:     []string{"interpretability", "non-linear patterns"},
		Limitations: []string{"overfitting"},
		Complexity:  "low", TrainingSpeed: "fast",
		DefaultParams: map[string]interface{}{"max_depth": 10},
	},
	{
		ID: "random_forest", DisplayName: "Random Forest",
		Description: "Ensemble of decision trees with high accuracy",
		BestFor:     []string{"accuracy", "feature importance"},
		Limitations: []string{"training time", "memory usage"},
		Complexity:  "medium", TrainingSpeed: "medium",
		DefaultParams: map[string]interface{}{"n_estimators": 100},
	},
	{
		ID: "gradient_boosting", DisplayName: "Gradient Boosting",
		Description: "Sequential ensemble with strong predictive power",
		BestFor:     []string{"high accuracy", "structured data"},
		Limitations: []string{"training time", "large datasets"},
		Complexity:  "high", TrainingSpeed: "slow",
		DefaultParams: map[string]interface{}{"n_estimators": 100, "learning_rate": 0.1},
	},
	{
		ID: "knn", DisplayName: "K-Nearest Neighbors",
		Description: "Instance-based learning algorithm",
		BestFor:     []string{"small datasets", "multi-class classification"},
		Limitations: []string{"large datasets", "high-dimensional data"},
		Complexity:  "low", TrainingSpeed: "fast",
		DefaultParams: map[string]interface{}{"n_neighbors": 5},
	},
	{
		ID: "naive_bayes", DisplayName: "Naive Bayes",
		Description: "Probabilistic classifier based on Bayes theorem",
		BestFor:     []string{"baseline", "fast predictions"},
		Limitations: []string{"feature independence assumption"},
		Complexity:  "low", TrainingSpeed: "very_fast",
		DefaultParams: map[string]interface{}{},
	},
}

var RegressionCatalog = []ModelSpec{
	{
		ID: "linear_regression", DisplayName: "Linear Regression",
		Description: "Simple linear model for regression",
		BestFor:     []string{"linear relationships", "baseline"},
		Limitations: []string{"non-linear relationships", "outliers"},
		Complexity:  "low", TrainingSpeed: "very_fast",
		DefaultParams: map[string]interface{}{},
	},
	{
		ID: "ridge", DisplayName: "Ridge Regression",
		Description: "Linear regression with L2 regularization",
		BestFor:     []string{"multicollinearity", "baseline"},
		Limitations: []string{"feature selection"},
		Complexity:  "low", TrainingSpeed: "very_fast",
		DefaultParams: map[string]interface{}{"alpha": 1.0},
	},
	{
		ID: "decision_tree_reg", DisplayName: "Decision Tree Regressor",
		Description: "Tree-based regression model",
		BestFor:     []string{"non-linear patterns", "interpretability"},
		Limitations: []string{"overfitting"},
		Complexity:  "low", TrainingSpeed: "fast",
		DefaultParams: map[string]interface{}{"max_depth": 10},
	},
	{
		ID: "random_forest_reg", DisplayName: "Random Forest Regressor",
		Description: "Ensemble of decision trees for regression",
		BestFor:     []string{"accuracy", "non-linear patterns"},
		Limitations: []string{"training time", "memory usage"},
		Complexity:  "medium", TrainingSpeed: "medium",
		DefaultParams: map[string]interface{}{"n_estimators": 100},
	},
	{
		ID: "gradient_boosting_reg", DisplayName: "Gradient Boosting Regressor",
		Description: "Sequential ensemble for regression",
		BestFor:     []string{"high accuracy", "structured data"},
		Limitations: []string{"training time", "large datasets"},
		Complexity:  "high", TrainingSpeed: "slow",
		DefaultParams: map[string]interface{}{"n_estimators": 100, "learning_rate": 0.1},
	},
	{
		ID: "knn_reg", DisplayName: "K-Nearest Neighbors Regressor",
		Description: "Instance-based regression",
		BestFor:     []string{"small datasets", "local patterns"},
		Limitations: []string{"large datasets", "high-dimensional data"},
		Complexity:  "low", TrainingSpeed: "fast",
		DefaultParams: map[string]interface{}{"n_neighbors": 5},
	},
}

// Catalog 按任务类型取模型目录。
func Catalog(taskType string) []ModelSpec {
	if taskType == "regression" {
		return RegressionCatalog
	}
	return ClassificationCatalog
}

// CatalogSpec 按模型 ID 查目录。
func CatalogSpec(taskType, modelID string) (ModelSpec, bool) {
	for _, spec := range Catalog(taskType) {
		if spec.ID == modelID {
			return spec, true
		}
	}
	return ModelSpec{}, false
}

// SelectionProcessor 模型选择阶段：根据数据特征自动勾选候选模型。
// 同步执行，不推进状态机；用户随后可以整体覆盖这份清单。
type SelectionProcessor struct{}

func NewSelectionProcessor() *SelectionProcessor {
	return &SelectionProcessor{}
}

func (p *SelectionProcessor) Stage() entity.Stage {
	return entity.StageModelSelection
}

func (p *SelectionProcessor) Process(_ context.Context, project *entity.Project) (json.RawMessage, error) {
	var analysis entity.AnalysisResult
	if err := json.Unmarshal(project.AnalysisResult, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis result failed: %w", err)
	}
	var preprocessing entity.PreprocessingResult
	if err := json.Unmarshal(project.PreprocessingResult, &preprocessing); err != nil {
		return nil, fmt.Errorf("decode preprocessing result failed: %w", err)
	}

	taskType := analysis.TaskType
	if project.TaskType != nil && *project.TaskType != "" {
		taskType = *project.TaskType
	}

	dataSize := preprocessing.Stats.TrainSamples + preprocessing.Stats.TestSamples
	featureCount := preprocessing.Stats.TotalFeatures

	result := SelectModels(taskType, dataSize, featureCount, analysis.DataQualityScore)
	return json.Marshal(result)
}

// SelectModels 按数据规模、特征数和数据质量给每个目录模型打优先级。
// 规则与参考实现一致：小数据砍掉高复杂度模型、大数据抬高复杂模型、
// baseline 永远高优先。
func SelectModels(taskType string, dataSize, featureCount int, qualityScore float64) *entity.ModelSelectionResult {
	var models []entity.ModelSelection

	for _, spec := range Catalog(taskType) {
		selected := true
		priority := 2
		var reasons []string

		switch {
		case dataSize < 100:
			if spec.Complexity == "high" {
				selected = false
				reasons = append(reasons, "dataset too small for complex model")
			} else if spec.TrainingSpeed == "very_fast" || spec.TrainingSpeed == "fast" {
				priority = 1
				reasons = append(reasons, "fast training suitable for small dataset")
			}
		case dataSize < 1000:
			if spec.Complexity == "low" {
				priority = 1
				reasons = append(reasons, "simple model good for moderate dataset size")
			}
		default:
			if spec.Complexity == "high" {
				priority = 1
				reasons = append(reasons, "complex model can leverage large dataset")
			}
			if contains(spec.Limitations, "large datasets") {
				priority = 3
				reasons = append(reasons, "may be slow on large datasets")
			}
		}

		if featureCount > 100 && contains(spec.Limitations, "high-dimensional data") {
			priority = 3
			reasons = append(reasons, "weak on high-dimensional data")
		}

		if contains(spec.BestFor, "baseline") {
			priority = 1
			reasons = append(reasons, "good baseline model")
		}

		if (contains(spec.BestFor, "accuracy") || contains(spec.BestFor, "high accuracy")) && qualityScore >= 70 {
			if priority > 1 {
				priority = 1
			}
			reasons = append(reasons, "known for high accuracy")
		}

		reason := "standard model for this task type"
		if len(reasons) > 0 {
			reason = strings.Join(reasons, "; ")
		}

		models = append(models, entity.ModelSelection{
			ModelID:         spec.ID,
			DisplayName:     spec.DisplayName,
			Selected:        selected,
			Priority:        priority,
			Reason:          reason,
			Hyperparameters: copyParams(spec.DefaultParams),
		})
	}

	// 勾选的在前，组内按优先级升序；排序要稳定，平局按目录顺序
	sortSelections(models)

	reasoning := fmt.Sprintf(
		"Task type: %s. Training samples: %d. Features: %d. Data quality score: %.0f/100.",
		taskType, dataSize, featureCount, qualityScore,
	)
	if dataSize < 1000 {
		reasoning += " Small dataset: prioritizing simple, fast models to avoid overfitting."
	} else if dataSize > 10000 {
		reasoning += " Large dataset: complex ensemble models can be effective."
	}

	return &entity.ModelSelectionResult{
		TaskType:           taskType,
		Models:             models,
		SelectionReasoning: reasoning,
		DataCharacteristics: map[string]interface{}{
			"data_size":     dataSize,
			"feature_count": featureCount,
			"quality_score": qualityScore,
		},
	}
}

func sortSelections(models []entity.ModelSelection) {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Selected != models[j].Selected {
			return models[i].Selected
		}
		return models[i].Priority < models[j].Priority
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
