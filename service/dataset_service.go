package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"

	"automl_studio/dao"
	"automl_studio/entity"
	"automl_studio/workflow"
)

// DatasetService 数据集登记与查询。登记时就把 CSV 读一遍拿行列数，
// 坏文件在这里挡住，不会等到分析阶段才暴露。
type DatasetService struct {
	datasets *dao.DatasetDAO
}

func NewDatasetService() *DatasetService {
	return &DatasetService{datasets: dao.NewDatasetDAO()}
}

type RegisterDatasetRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	FilePath    string `json:"file_path" binding:"required"`
}

func (s *DatasetService) Register(ctx context.Context, req *RegisterDatasetRequest) (*entity.Dataset, error) {
	if req == nil || req.Name == "" || req.FilePath == "" {
		return nil, fmt.Errorf("%w: name and file_path are required", ErrInvalidRequest)
	}

	info, err := os.Stat(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	table, err := workflow.LoadCSV(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("%w: csv has no header row", ErrInvalidRequest)
	}

	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return nil, err
	}

	dataset := &entity.Dataset{
		ID:          uuid.NewString(),
		Name:        req.Name,
		FilePath:    req.FilePath,
		RowCount:    len(table.Rows),
		ColumnCount: len(table.Columns),
		Columns:     columns,
		SizeMB:      math.Round(float64(info.Size())/1024/1024*100) / 100,
	}
	if req.Description != "" {
		dataset.Description = &req.Description
	}
	if err := s.datasets.Save(ctx, dataset); err != nil {
		return nil, err
	}
	svcLogger().Info("数据集已登记", "dataset_id", dataset.ID, "name", dataset.Name,
		"rows", dataset.RowCount, "columns", dataset.ColumnCount)
	return dataset, nil
}

func (s *DatasetService) Get(ctx context.Context, datasetID string) (*entity.Dataset, error) {
	return s.datasets.FindByID(ctx, datasetID)
}

func (s *DatasetService) List(ctx context.Context, params entity.QueryParams) (*entity.PageResult, error) {
	datasets, total, err := s.datasets.FindAll(ctx, params)
	if err != nil {
		return nil, err
	}
	return &entity.PageResult{Total: total, List: datasets}, nil
}
