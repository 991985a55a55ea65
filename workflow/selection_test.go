package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl_studio/entity"
)

func modelByID(t *testing.T, result *entity.ModelSelectionResult, id string) entity.ModelSelection {
	t.Helper()
	for _, m := range result.Models {
		if m.ModelID == id {
			return m
		}
	}
	t.Fatalf("model %s not in selection", id)
	return entity.ModelSelection{}
}

func TestSelectModelsSmallDataset(t *testing.T) {
	result := SelectModels("classification", 60, 5, 80)

	require.Len(t, result.Models, len(ClassificationCatalog))

	// 小数据集砍掉高复杂度模型
	gb := modelByID(t, result, "gradient_boosting")
	assert.False(t, gb.Selected)

	// 快的简单模型抬到高优先
	lr := modelByID(t, result, "logistic_regression")
	assert.True(t, lr.Selected)
	assert.Equal(t, 1, lr.Priority)

	// 勾选的排前面
	var seenUnselected bool
	for _, m := range result.Models {
		if !m.Selected {
			seenUnselected = true
		} else {
			assert.False(t, seenUnselected, "selected models must precede deselected ones")
		}
	}
}

func TestSelectModelsLargeDataset(t *testing.T) {
	result := SelectModels("classification", 50000, 20, 90)

	// 高质量数据下的高精度模型最终抬回高优先
	gb := modelByID(t, result, "gradient_boosting")
	assert.True(t, gb.Selected)
	assert.Equal(t, 1, gb.Priority)
	assert.Contains(t, gb.Reason, "slow on large datasets")

	// 没有精度加成的模型保持低优先
	knn := modelByID(t, result, "knn")
	assert.Equal(t, 3, knn.Priority)

	rf := modelByID(t, result, "random_forest")
	assert.Equal(t, 1, rf.Priority, "accuracy model with good data quality gets high priority")
}

func TestSelectModelsBaselineAlwaysHigh(t *testing.T) {
	for _, size := range []int{50, 500, 50000} {
		result := SelectModels("regression", size, 10, 60)
		lin := modelByID(t, result, "linear_regression")
		assert.Equal(t, 1, lin.Priority, "baseline priority at size %d", size)
		assert.True(t, lin.Selected)
	}
}

func TestSelectModelsHighDimensional(t *testing.T) {
	result := SelectModels("classification", 5000, 150, 80)
	knn := modelByID(t, result, "knn")
	assert.Equal(t, 3, knn.Priority)
}

func TestSelectModelsRegressionCatalog(t *testing.T) {
	result := SelectModels("regression", 500, 10, 70)
	assert.Equal(t, "regression", result.TaskType)
	require.Len(t, result.Models, len(RegressionCatalog))
	for _, m := range result.Models {
		_, ok := CatalogSpec("regression", m.ModelID)
		assert.True(t, ok)
	}
	assert.NotEmpty(t, result.SelectionReasoning)
	assert.Equal(t, 500, result.DataCharacteristics["data_size"])
}

func TestSelectModelsHyperparametersAreCopies(t *testing.T) {
	a := SelectModels("classification", 500, 10, 70)
	b := SelectModels("classification", 500, 10, 70)

	ma := modelByID(t, a, "decision_tree")
	ma.Hyperparameters["max_depth"] = 3

	mb := modelByID(t, b, "decision_tree")
	assert.Equal(t, 10, mb.Hyperparameters["max_depth"], "catalog defaults must not be mutated")
}
