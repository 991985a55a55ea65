package entity

import (
	"encoding/json"
	"time"
)

// Status 项目当前所处的流水线状态，见 workflow 包的状态机定义。
type Status string

const (
	StatusCreated               Status = "created"
	StatusDatasetLinked         Status = "dataset_linked"
	StatusAnalyzing             Status = "analyzing"
	StatusAnalyzed              Status = "analyzed"
	StatusAnalysisFailed        Status = "analysis_failed"
	StatusAnalysisAwaiting      Status = "analysis_awaiting_approval"
	StatusPreprocessing         Status = "preprocessing"
	StatusPreprocessed          Status = "preprocessed"
	StatusPreprocessingFailed   Status = "preprocessing_failed"
	StatusPreprocessingAwaiting Status = "preprocessing_awaiting_approval"
	StatusTraining              Status = "training"
	StatusTrained               Status = "trained"
	StatusTrainingFailed        Status = "training_failed"
	StatusTrainingAwaiting      Status = "training_awaiting_approval"
	StatusFailed                Status = "failed"
)

// Stage 流水线中的一个阶段。
type Stage string

const (
	StageAnalysis       Stage = "analysis"
	StagePreprocessing  Stage = "preprocessing"
	StageModelSelection Stage = "model_selection"
	StageTraining       Stage = "training"
)

// Project AutoML 项目聚合根。状态、各阶段产出和 workflow_log 都存在这一行里，
// workflow_log 只追加不修改，是轮询端渲染进度的唯一依据。
type Project struct {
	ID          string  `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name        string  `gorm:"column:name" json:"name"`
	Description string  `gorm:"column:description" json:"description"`
	DataSource  string  `gorm:"column:data_source" json:"data_source"` // upload | existing | internet
	Status      Status  `gorm:"column:status;index" json:"status"`
	DatasetID   *string `gorm:"column:dataset_id;size:36" json:"dataset_id"`

	TargetColumn *string `gorm:"column:target_column" json:"target_column"`
	TaskType     *string `gorm:"column:task_type" json:"task_type"` // classification | regression

	AnalysisResult      json.RawMessage `gorm:"column:analysis_result;type:json" json:"analysis_result,omitempty"`
	PreprocessingResult json.RawMessage `gorm:"column:preprocessing_result;type:json" json:"preprocessing_result,omitempty"`
	ModelSelection      json.RawMessage `gorm:"column:model_selection;type:json" json:"model_selection,omitempty"`
	TrainingProgress    json.RawMessage `gorm:"column:training_progress;type:json" json:"training_progress,omitempty"`
	TrainingResult      json.RawMessage `gorm:"column:training_result;type:json" json:"training_result,omitempty"`

	// PendingResult 审批模式下暂存"已算出但未生效"的阶段结果
	PendingResult json.RawMessage `gorm:"column:pending_result;type:json" json:"pending_result,omitempty"`

	WorkflowLog json.RawMessage `gorm:"column:workflow_log;type:json" json:"workflow_log"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "automl_projects"
}

// Events 解码 workflow_log；日志列损坏时返回空切片而不是错误，
// 读路径不应该因为历史脏数据失败。
func (p *Project) Events() []WorkflowEvent {
	if len(p.WorkflowLog) == 0 {
		return nil
	}
	var events []WorkflowEvent
	if err := json.Unmarshal(p.WorkflowLog, &events); err != nil {
		return nil
	}
	return events
}

// AppendEvent 追加一条事件并重新编码 workflow_log。
func (p *Project) AppendEvent(ev WorkflowEvent) {
	events := append(p.Events(), ev)
	data, err := json.Marshal(events)
	if err != nil {
		return
	}
	p.WorkflowLog = data
}
