package entity

import "time"

// EventStatus workflow_log 中一条事件的状态。
type EventStatus string

const (
	EventStarted          EventStatus = "started"
	EventComplete         EventStatus = "complete"
	EventError            EventStatus = "error"
	EventAwaitingApproval EventStatus = "awaiting_approval"
	EventApproved         EventStatus = "approved"
	EventRejected         EventStatus = "rejected"
)

// WorkflowEvent workflow_log 的一条记录。只追加，不回写。
type WorkflowEvent struct {
	Stage     Stage       `json:"stage"`
	Status    EventStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ColumnProfile 分析阶段对单列的画像。
type ColumnProfile struct {
	Name         string         `json:"name"`
	DType        string         `json:"dtype"` // numeric | categorical | text
	MissingCount int            `json:"missing_count"`
	MissingPct   float64        `json:"missing_pct"`
	UniqueCount  int            `json:"unique_count"`
	UniquePct    float64        `json:"unique_pct"`
	Min          *float64       `json:"min,omitempty"`
	Max          *float64       `json:"max,omitempty"`
	Mean         *float64       `json:"mean,omitempty"`
	Std          *float64       `json:"std,omitempty"`
	Median       *float64       `json:"median,omitempty"`
	OutlierCount int            `json:"outlier_count"`
	OutlierPct   float64        `json:"outlier_pct"`
	TopValues    map[string]int `json:"top_values,omitempty"`
}

// TargetCandidate 推荐的目标列及其推断任务类型。
type TargetCandidate struct {
	Column     string  `json:"column"`
	TaskType   string  `json:"task_type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// AnalysisResult 分析阶段产出。
type AnalysisResult struct {
	TaskType         string            `json:"task_type"`
	Confidence       float64           `json:"confidence"`
	DataQualityScore float64           `json:"data_quality_score"`
	TotalRows        int               `json:"total_rows"`
	TotalColumns     int               `json:"total_columns"`
	ColumnAnalysis   []ColumnProfile   `json:"column_analysis"`
	Issues           []string          `json:"issues"`
	Suggestions      []string          `json:"suggestions"`
	TargetCandidates []TargetCandidate `json:"target_candidates"`
}

// PreprocessingConfig 预处理阶段输入：auto 模式下由分析结果推导，custom 模式由用户给定。
type PreprocessingConfig struct {
	MissingStrategy string   `json:"missing_strategy"` // drop | fill_mean | fill_median | fill_mode | fill_value
	FillValue       string   `json:"fill_value,omitempty"`
	Normalization   string   `json:"normalization"` // none | minmax | zscore
	EncodeColumns   []string `json:"encode_columns,omitempty"`
	TrainRatio      float64  `json:"train_ratio"`
	Shuffle         bool     `json:"shuffle"`
	RandomSeed      int64    `json:"random_seed"`
}

// PreprocessingStats 预处理后的数据规模。
type PreprocessingStats struct {
	TrainSamples  int `json:"train_samples"`
	TestSamples   int `json:"test_samples"`
	TotalFeatures int `json:"total_features"`
	DroppedRows   int `json:"dropped_rows"`
}

// PreprocessingResult 预处理阶段产出。
type PreprocessingResult struct {
	Mode         string              `json:"mode"` // auto | custom
	Config       PreprocessingConfig `json:"config"`
	Stats        PreprocessingStats  `json:"stats"`
	FeatureNames []string            `json:"feature_names"`
	StepsApplied []string            `json:"steps_applied"`
}

// ModelSelection 候选模型清单中的一行。
type ModelSelection struct {
	ModelID         string                 `json:"model_id"`
	DisplayName     string                 `json:"display_name"`
	Selected        bool                   `json:"selected"`
	Priority        int                    `json:"priority"` // 1=high 2=medium 3=low
	Reason          string                 `json:"reason"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
}

// ModelSelectionResult 模型选择阶段产出，用户改选或重跑自动选择时整体替换。
type ModelSelectionResult struct {
	TaskType            string                 `json:"task_type"`
	Models              []ModelSelection       `json:"models"`
	SelectionReasoning  string                 `json:"selection_reasoning"`
	DataCharacteristics map[string]interface{} `json:"data_characteristics"`
}

// TrainingProgress 训练阶段的进度快照，轮询端读取。
type TrainingProgress struct {
	TotalModels     int    `json:"total_models"`
	CompletedModels int    `json:"completed_models"`
	CurrentModel    string `json:"current_model"`
	Status          string `json:"status"`
}

// TrainingResult 单个训练任务的结果。
type TrainingResult struct {
	ModelID     string             `json:"model_id"`
	DisplayName string             `json:"display_name"`
	Status      string             `json:"status"` // completed | failed
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Error       string             `json:"error,omitempty"`
	TrainedAt   time.Time          `json:"trained_at"`
}

// TrainingResults 训练阶段的整体归约结果。
type TrainingResults struct {
	ModelsTrained    int              `json:"models_trained"`
	ModelsSuccessful int              `json:"models_successful"`
	BestModel        *TrainingResult  `json:"best_model"`
	AllResults       []TrainingResult `json:"all_results"`
	CompletedAt      time.Time        `json:"completed_at"`
}
