package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func churnTable() *Table {
	t := &Table{Columns: []string{"age", "plan", "churn"}}
	plans := []string{"basic", "premium", "family"}
	for i := 0; i < 60; i++ {
		churn := "no"
		if i%3 == 0 {
			churn = "yes"
		}
		t.Rows = append(t.Rows, []string{
			fmt.Sprintf("%d", 18+i),
			plans[i%len(plans)],
			churn,
		})
	}
	return t
}

func TestAnalyzeTableColumnProfiles(t *testing.T) {
	result := AnalyzeTable(churnTable(), "predict churn")

	assert.Equal(t, 60, result.TotalRows)
	assert.Equal(t, 3, result.TotalColumns)
	require.Len(t, result.ColumnAnalysis, 3)

	age := result.ColumnAnalysis[0]
	assert.Equal(t, "numeric", age.DType)
	assert.Equal(t, 60, age.UniqueCount)
	require.NotNil(t, age.Min)
	require.NotNil(t, age.Max)
	assert.InDelta(t, 18, *age.Min, 1e-9)
	assert.InDelta(t, 77, *age.Max, 1e-9)
	require.NotNil(t, age.Median)

	plan := result.ColumnAnalysis[1]
	assert.Equal(t, "categorical", plan.DType)
	assert.Equal(t, 3, plan.UniqueCount)
	assert.Contains(t, plan.TopValues, "basic")

	churn := result.ColumnAnalysis[2]
	assert.Equal(t, "categorical", churn.DType)
	assert.Equal(t, 2, churn.UniqueCount)
}

func TestAnalyzeTableTargetCandidates(t *testing.T) {
	result := AnalyzeTable(churnTable(), "predict churn for subscribers")

	require.NotEmpty(t, result.TargetCandidates)
	// 描述里有分类关键字，类别列候选排在最前
	top := result.TargetCandidates[0]
	assert.Equal(t, "classification", top.TaskType)
	assert.Equal(t, "classification", result.TaskType)

	// 连续数值列仍然作为回归候选出现
	var hasRegression bool
	for _, c := range result.TargetCandidates {
		if c.Column == "age" && c.TaskType == "regression" {
			hasRegression = true
		}
	}
	assert.True(t, hasRegression)

	// 置信度降序
	for i := 1; i < len(result.TargetCandidates); i++ {
		assert.GreaterOrEqual(t, result.TargetCandidates[i-1].Confidence, result.TargetCandidates[i].Confidence)
	}
}

func TestAnalyzeTableQualityPenalties(t *testing.T) {
	table := &Table{Columns: []string{"x", "label"}}
	for i := 0; i < 20; i++ {
		x := fmt.Sprintf("%d", i)
		if i%2 == 0 {
			x = "" // 50% 缺失
		}
		table.Rows = append(table.Rows, []string{x, fmt.Sprintf("c%d", i%2)})
	}

	result := AnalyzeTable(table, "")

	var x *float64
	for _, p := range result.ColumnAnalysis {
		if p.Name == "x" {
			pct := p.MissingPct
			x = &pct
		}
	}
	require.NotNil(t, x)
	assert.InDelta(t, 50.0, *x, 1e-9)

	// 缺失 + 小样本都要扣分
	assert.Less(t, result.DataQualityScore, 100.0)
	assert.NotEmpty(t, result.Issues)
	assert.NotEmpty(t, result.Suggestions)
}

func TestAnalyzeTableLowCardinalityNumericTarget(t *testing.T) {
	table := &Table{Columns: []string{"f1", "label"}}
	for i := 0; i < 30; i++ {
		table.Rows = append(table.Rows, []string{fmt.Sprintf("%d.5", i), fmt.Sprintf("%d", i%3)})
	}

	result := AnalyzeTable(table, "")

	var found bool
	for _, c := range result.TargetCandidates {
		if c.Column == "label" {
			found = true
			assert.Equal(t, "classification", c.TaskType)
		}
	}
	assert.True(t, found, "low-cardinality numeric column should be a classification candidate")
}
