package workflow

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"automl_studio/entity"
	"automl_studio/trainer"
)

// BuildTrainingData 按预处理配置把 CSV 重建成数值矩阵：
// 缺失处理、one-hot、归一化、切分，和预处理阶段统计口径一致。
// 分类任务的标签按首次出现顺序编码为 0..k-1。
func BuildTrainingData(
	table *Table,
	analysis *entity.AnalysisResult,
	pre *entity.PreprocessingResult,
	target, taskType string,
) (*trainer.Dataset, error) {
	targetIdx := table.ColumnIndex(target)
	if targetIdx < 0 {
		return nil, fmt.Errorf("target column %q not found in dataset", target)
	}

	profiles := make(map[string]entity.ColumnProfile, len(analysis.ColumnAnalysis))
	for _, p := range analysis.ColumnAnalysis {
		profiles[p.Name] = p
	}

	// 特征清单里的名字要么是原始数值列，要么是 col=value 的 one-hot 展开
	type featureRef struct {
		column   string
		colIdx   int
		oneHot   bool
		hotValue string
	}
	refs := make([]featureRef, 0, len(pre.FeatureNames))
	for _, name := range pre.FeatureNames {
		ref := featureRef{column: name}
		if eq := strings.Index(name, "="); eq >= 0 {
			ref.column = name[:eq]
			ref.oneHot = true
			ref.hotValue = name[eq+1:]
		}
		ref.colIdx = table.ColumnIndex(ref.column)
		if ref.colIdx < 0 {
			return nil, fmt.Errorf("feature column %q not found in dataset", ref.column)
		}
		refs = append(refs, ref)
	}

	dropMissing := pre.Config.MissingStrategy == "drop"

	var X [][]float64
	var y []float64
	labelCodes := make(map[string]float64)

	for _, row := range table.Rows {
		cell := func(idx int) string {
			if idx < len(row) {
				return row[idx]
			}
			return ""
		}

		// 目标缺失的行没法用
		targetRaw := cell(targetIdx)
		if isMissing(targetRaw) {
			continue
		}

		if dropMissing {
			skip := false
			for i := range table.Columns {
				if isMissing(cell(i)) {
					skip = true
					break
				}
			}
			if skip {
				continue
			}
		}

		features := make([]float64, len(refs))
		ok := true
		for fi, ref := range refs {
			raw := cell(ref.colIdx)
			if ref.oneHot {
				if !isMissing(raw) && strings.TrimSpace(raw) == ref.hotValue {
					features[fi] = 1
				}
				continue
			}
			if isMissing(raw) {
				features[fi] = imputeValue(profiles[ref.column], pre.Config)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				ok = false
				break
			}
			features[fi] = v
		}
		if !ok {
			continue
		}

		var label float64
		if taskType == "regression" {
			v, err := strconv.ParseFloat(strings.TrimSpace(targetRaw), 64)
			if err != nil {
				continue
			}
			label = v
		} else {
			key := strings.TrimSpace(targetRaw)
			code, seen := labelCodes[key]
			if !seen {
				code = float64(len(labelCodes))
				labelCodes[key] = code
			}
			label = code
		}

		X = append(X, features)
		y = append(y, label)
	}

	if len(X) < 10 {
		return nil, fmt.Errorf("only %d usable rows for training", len(X))
	}

	normalize(X, pre.Config.Normalization)

	// 切分。洗牌用固定种子，结果可复现
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	if pre.Config.Shuffle {
		seed := pre.Config.RandomSeed
		if seed == 0 {
			seed = 42
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	ratio := pre.Config.TrainRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.8
	}
	trainN := int(float64(len(X)) * ratio)
	if trainN < 1 {
		trainN = 1
	}
	if trainN >= len(X) {
		trainN = len(X) - 1
	}

	data := &trainer.Dataset{}
	for i, idx := range order {
		if i < trainN {
			data.XTrain = append(data.XTrain, X[idx])
			data.YTrain = append(data.YTrain, y[idx])
		} else {
			data.XTest = append(data.XTest, X[idx])
			data.YTest = append(data.YTest, y[idx])
		}
	}
	return data, nil
}

func imputeValue(profile entity.ColumnProfile, cfg entity.PreprocessingConfig) float64 {
	switch cfg.MissingStrategy {
	case "fill_mean":
		if profile.Mean != nil {
			return *profile.Mean
		}
	case "fill_median":
		if profile.Median != nil {
			return *profile.Median
		}
	case "fill_value":
		if v, err := strconv.ParseFloat(cfg.FillValue, 64); err == nil {
			return v
		}
	case "fill_mode":
		// 数值列的众数画像里没有，退回中位数
		if profile.Median != nil {
			return *profile.Median
		}
	}
	if profile.Median != nil {
		return *profile.Median
	}
	return 0
}

func normalize(X [][]float64, method string) {
	if len(X) == 0 || (method != "minmax" && method != "zscore") {
		return
	}
	d := len(X[0])
	for j := 0; j < d; j++ {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		switch method {
		case "minmax":
			sorted := append([]float64(nil), col...)
			sort.Float64s(sorted)
			mn, mx := sorted[0], sorted[len(sorted)-1]
			if mx == mn {
				continue
			}
			for i := range X {
				X[i][j] = (X[i][j] - mn) / (mx - mn)
			}
		case "zscore":
			m := mean(col)
			s := std(col)
			if s == 0 {
				continue
			}
			for i := range X {
				X[i][j] = (X[i][j] - m) / s
			}
		}
	}
}
