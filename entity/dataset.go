package entity

import (
	"encoding/json"
	"time"
)

// Dataset 已登记的数据集（CSV 文件）。项目通过 dataset_id 弱引用它，
// 删除项目不会删除数据集。
type Dataset struct {
	ID          string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name        string          `gorm:"column:name" json:"name"`
	Description *string         `gorm:"column:description" json:"description"`
	FilePath    string          `gorm:"column:file_path" json:"file_path"`
	RowCount    int             `gorm:"column:row_count" json:"row_count"`
	ColumnCount int             `gorm:"column:column_count" json:"column_count"`
	Columns     json.RawMessage `gorm:"column:columns;type:json" json:"columns"`
	SizeMB      float64         `gorm:"column:size_mb" json:"size_mb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Dataset) TableName() string {
	return "automl_datasets"
}
