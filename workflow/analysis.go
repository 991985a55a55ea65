package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"automl_studio/entity"
)

// DatasetStore 数据集记录的只读口子，由 dao.DatasetDAO 实现。
type DatasetStore interface {
	FindByID(ctx context.Context, id string) (*entity.Dataset, error)
}

// AnalysisProcessor 分析阶段：逐列画像、推断任务类型、评估数据质量、
// 给出目标列候选。
type AnalysisProcessor struct {
	Datasets DatasetStore
}

func NewAnalysisProcessor(datasets DatasetStore) *AnalysisProcessor {
	return &AnalysisProcessor{Datasets: datasets}
}

func (p *AnalysisProcessor) Stage() entity.Stage {
	return entity.StageAnalysis
}

func (p *AnalysisProcessor) Process(ctx context.Context, project *entity.Project) (json.RawMessage, error) {
	if project.DatasetID == nil {
		return nil, ErrNoDatasetLinked
	}
	dataset, err := p.Datasets.FindByID(ctx, *project.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("load linked dataset failed: %w", err)
	}

	table, err := LoadCSV(dataset.FilePath)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("dataset %s has no data rows", dataset.ID)
	}

	result := AnalyzeTable(table, project.Description)
	return json.Marshal(result)
}

// AnalyzeTable 对整张表做画像。独立出来便于测试。
func AnalyzeTable(table *Table, description string) *entity.AnalysisResult {
	profiles := make([]entity.ColumnProfile, 0, len(table.Columns))
	for i := range table.Columns {
		profiles = append(profiles, profileColumn(table.Columns[i], table.Column(i)))
	}

	candidates := targetCandidates(profiles, description)

	taskType := "classification"
	confidence := 0.5
	if len(candidates) > 0 {
		taskType = candidates[0].TaskType
		confidence = candidates[0].Confidence
	}

	quality, issues, suggestions := assessQuality(profiles, len(table.Rows))

	return &entity.AnalysisResult{
		TaskType:         taskType,
		Confidence:       confidence,
		DataQualityScore: quality,
		TotalRows:        len(table.Rows),
		TotalColumns:     len(table.Columns),
		ColumnAnalysis:   profiles,
		Issues:           issues,
		Suggestions:      suggestions,
		TargetCandidates: candidates,
	}
}

func profileColumn(name string, values []string) entity.ColumnProfile {
	total := len(values)
	missing := 0
	nonNull := make([]string, 0, total)
	for _, v := range values {
		if isMissing(v) {
			missing++
		} else {
			nonNull = append(nonNull, strings.TrimSpace(v))
		}
	}

	uniques := make(map[string]int)
	for _, v := range nonNull {
		uniques[v]++
	}

	profile := entity.ColumnProfile{
		Name:         name,
		MissingCount: missing,
		UniqueCount:  len(uniques),
	}
	if total > 0 {
		profile.MissingPct = round2(float64(missing) / float64(total) * 100)
	}
	if len(nonNull) > 0 {
		profile.UniquePct = round2(float64(len(uniques)) / float64(len(nonNull)) * 100)
	}

	if nums, ok := numericValues(values); ok {
		profile.DType = "numeric"
		mn, mx := nums[0], nums[0]
		for _, n := range nums {
			if n < mn {
				mn = n
			}
			if n > mx {
				mx = n
			}
		}
		m, s, md := mean(nums), std(nums), median(nums)
		profile.Min, profile.Max = &mn, &mx
		profile.Mean, profile.Std, profile.Median = &m, &s, &md

		// IQR 离群点
		if len(nums) > 4 {
			sorted := append([]float64(nil), nums...)
			sort.Float64s(sorted)
			q1 := quantile(sorted, 0.25)
			q3 := quantile(sorted, 0.75)
			iqr := q3 - q1
			outliers := 0
			for _, n := range nums {
				if n < q1-1.5*iqr || n > q3+1.5*iqr {
					outliers++
				}
			}
			profile.OutlierCount = outliers
			profile.OutlierPct = round2(float64(outliers) / float64(len(nums)) * 100)
		}
		return profile
	}

	// 类别列：唯一值占比低或绝对数量小
	uniqueRatio := 0.0
	if len(nonNull) > 0 {
		uniqueRatio = float64(len(uniques)) / float64(len(nonNull))
	}
	if uniqueRatio < 0.05 || len(uniques) <= 20 {
		profile.DType = "categorical"
		profile.TopValues = topValues(uniques, 10)
	} else {
		profile.DType = "text"
	}
	return profile
}

func topValues(counts map[string]int, limit int) map[string]int {
	type kv struct {
		k string
		v int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].v != pairs[j].v {
			return pairs[i].v > pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	top := make(map[string]int, len(pairs))
	for _, p := range pairs {
		top[p.k] = p.v
	}
	return top
}

var classificationKeywords = []string{
	"classify", "classification", "predict if", "spam", "fraud", "churn",
	"category", "class", "label", "yes/no", "true/false", "binary",
}

var regressionKeywords = []string{
	"price", "amount", "value", "forecast", "regression",
	"continuous", "how much", "estimate",
}

// targetCandidates 结合项目描述关键字和列特征给出目标列候选，置信度降序。
func targetCandidates(profiles []entity.ColumnProfile, description string) []entity.TargetCandidate {
	desc := strings.ToLower(description)
	descScore := map[string]int{"classification": 0, "regression": 0}
	for _, kw := range classificationKeywords {
		if strings.Contains(desc, kw) {
			descScore["classification"] += 2
		}
	}
	for _, kw := range regressionKeywords {
		if strings.Contains(desc, kw) {
			descScore["regression"] += 2
		}
	}

	var candidates []entity.TargetCandidate
	for _, p := range profiles {
		switch p.DType {
		case "categorical":
			if p.UniqueCount >= 2 && p.UniqueCount <= 20 {
				conf := 0.6 + 0.05*float64(descScore["classification"])
				candidates = append(candidates, entity.TargetCandidate{
					Column:     p.Name,
					TaskType:   "classification",
					Confidence: clamp01(conf),
					Reason:     fmt.Sprintf("categorical column with %d classes", p.UniqueCount),
				})
			}
		case "numeric":
			// 低基数数值列更像类别标签
			if p.UniqueCount >= 2 && p.UniqueCount <= 10 {
				candidates = append(candidates, entity.TargetCandidate{
					Column:     p.Name,
					TaskType:   "classification",
					Confidence: clamp01(0.55 + 0.05*float64(descScore["classification"])),
					Reason:     fmt.Sprintf("numeric column with only %d distinct values", p.UniqueCount),
				})
			} else if p.UniqueCount > 10 {
				candidates = append(candidates, entity.TargetCandidate{
					Column:     p.Name,
					TaskType:   "regression",
					Confidence: clamp01(0.5 + 0.05*float64(descScore["regression"])),
					Reason:     "continuous numeric column",
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

// assessQuality 数据质量打分：从 100 分按缺失、离群、小样本扣分。
func assessQuality(profiles []entity.ColumnProfile, rows int) (score float64, issues, suggestions []string) {
	score = 100
	issues = []string{}
	suggestions = []string{}

	for _, p := range profiles {
		if p.MissingPct > 50 {
			score -= 10
			issues = append(issues, fmt.Sprintf("column %q is %.0f%% missing", p.Name, p.MissingPct))
			suggestions = append(suggestions, fmt.Sprintf("consider dropping column %q", p.Name))
		} else if p.MissingPct > 5 {
			score -= 3
			issues = append(issues, fmt.Sprintf("column %q has missing values (%.1f%%)", p.Name, p.MissingPct))
			suggestions = append(suggestions, fmt.Sprintf("impute missing values in %q", p.Name))
		}
		if p.OutlierPct > 10 {
			score -= 2
			issues = append(issues, fmt.Sprintf("column %q has many outliers (%.1f%%)", p.Name, p.OutlierPct))
		}
	}

	if rows < 100 {
		score -= 15
		issues = append(issues, fmt.Sprintf("only %d rows, models may overfit", rows))
		suggestions = append(suggestions, "collect more data if possible")
	} else if rows < 1000 {
		score -= 5
	}

	if score < 0 {
		score = 0
	}
	return round2(score), issues, suggestions
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
