package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"automl_studio/entity"
)

// PreprocessProcessor 预处理阶段。auto 模式从分析结果推导配置，
// custom 模式用用户给定的配置。产出是统计与特征清单，
// 实际特征矩阵在训练阶段按同一配置重建。
type PreprocessProcessor struct {
	Datasets DatasetStore
	Mode     string // auto | custom
	Config   *entity.PreprocessingConfig
}

func NewPreprocessProcessor(datasets DatasetStore, mode string, cfg *entity.PreprocessingConfig) *PreprocessProcessor {
	if mode == "" {
		mode = "auto"
	}
	return &PreprocessProcessor{Datasets: datasets, Mode: mode, Config: cfg}
}

func (p *PreprocessProcessor) Stage() entity.Stage {
	return entity.StagePreprocessing
}

func (p *PreprocessProcessor) Process(ctx context.Context, project *entity.Project) (json.RawMessage, error) {
	if project.DatasetID == nil {
		return nil, ErrNoDatasetLinked
	}
	if project.TargetColumn == nil {
		return nil, ErrNoTargetColumn
	}

	dataset, err := p.Datasets.FindByID(ctx, *project.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("load linked dataset failed: %w", err)
	}
	table, err := LoadCSV(dataset.FilePath)
	if err != nil {
		return nil, err
	}

	var analysis entity.AnalysisResult
	if err := json.Unmarshal(project.AnalysisResult, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis result failed: %w", err)
	}

	cfg := p.Config
	if p.Mode == "auto" || cfg == nil {
		derived := DeriveConfig(&analysis, *project.TargetColumn)
		cfg = &derived
	}

	result, err := Preprocess(table, &analysis, *project.TargetColumn, *cfg)
	if err != nil {
		return nil, err
	}
	result.Mode = p.Mode
	return json.Marshal(result)
}

// DeriveConfig 从分析结果推导一份合理的预处理配置。
func DeriveConfig(analysis *entity.AnalysisResult, target string) entity.PreprocessingConfig {
	cfg := entity.PreprocessingConfig{
		MissingStrategy: "fill_median",
		Normalization:   "zscore",
		TrainRatio:      0.8,
		Shuffle:         true,
		RandomSeed:      42,
	}

	heavyMissing := false
	heavyOutliers := false
	for _, col := range analysis.ColumnAnalysis {
		if col.MissingPct > 30 {
			heavyMissing = true
		}
		if col.OutlierPct > 10 {
			heavyOutliers = true
		}
		if col.DType == "categorical" && col.Name != target {
			cfg.EncodeColumns = append(cfg.EncodeColumns, col.Name)
		}
	}
	if heavyMissing {
		cfg.MissingStrategy = "drop"
	}
	if heavyOutliers {
		// 离群点多时 minmax 会被极值拉扁，但和原始量纲一致，便于审阅
		cfg.Normalization = "minmax"
	}
	return cfg
}

// Preprocess 按配置统计预处理后的数据形态。
func Preprocess(table *Table, analysis *entity.AnalysisResult, target string, cfg entity.PreprocessingConfig) (*entity.PreprocessingResult, error) {
	targetIdx := table.ColumnIndex(target)
	if targetIdx < 0 {
		return nil, fmt.Errorf("target column %q not found in dataset", target)
	}

	profiles := make(map[string]entity.ColumnProfile, len(analysis.ColumnAnalysis))
	for _, p := range analysis.ColumnAnalysis {
		profiles[p.Name] = p
	}
	encode := make(map[string]bool, len(cfg.EncodeColumns))
	for _, c := range cfg.EncodeColumns {
		encode[c] = true
	}

	var steps []string

	// 1. 缺失值处理
	dropped := 0
	usable := len(table.Rows)
	if cfg.MissingStrategy == "drop" {
		for _, row := range table.Rows {
			for i := range table.Columns {
				v := ""
				if i < len(row) {
					v = row[i]
				}
				if isMissing(v) {
					dropped++
					break
				}
			}
		}
		usable -= dropped
		steps = append(steps, fmt.Sprintf("dropped %d rows with missing values", dropped))
	} else {
		steps = append(steps, fmt.Sprintf("imputed missing values (%s)", cfg.MissingStrategy))
	}
	if usable < 10 {
		return nil, fmt.Errorf("only %d usable rows after missing-value handling", usable)
	}

	// 2. 特征清单：数值列直通，勾选的类别列做 one-hot 展开
	var features []string
	for i, name := range table.Columns {
		if i == targetIdx {
			continue
		}
		p, ok := profiles[name]
		if !ok {
			continue
		}
		switch {
		case p.DType == "numeric":
			features = append(features, name)
		case p.DType == "categorical" && encode[name]:
			for value := range p.TopValues {
				features = append(features, name+"="+value)
			}
		}
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("no usable feature columns besides target %q", target)
	}
	if len(cfg.EncodeColumns) > 0 {
		steps = append(steps, fmt.Sprintf("one-hot encoded %d categorical columns", len(cfg.EncodeColumns)))
	}

	// 3. 归一化
	if cfg.Normalization != "" && cfg.Normalization != "none" {
		steps = append(steps, fmt.Sprintf("normalized numeric features (%s)", cfg.Normalization))
	}

	// 4. 训练/测试切分
	ratio := cfg.TrainRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.8
	}
	trainSamples := int(float64(usable) * ratio)
	testSamples := usable - trainSamples
	steps = append(steps, fmt.Sprintf("split %d train / %d test rows", trainSamples, testSamples))

	return &entity.PreprocessingResult{
		Config:       cfg,
		FeatureNames: features,
		StepsApplied: steps,
		Stats: entity.PreprocessingStats{
			TrainSamples:  trainSamples,
			TestSamples:   testSamples,
			TotalFeatures: len(features),
			DroppedRows:   dropped,
		},
	}, nil
}
