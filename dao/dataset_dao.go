package dao

import (
	"context"
	"fmt"
	"strings"

	"automl_studio/config"
	"automl_studio/entity"

	"gorm.io/gorm"
)

type DatasetDAO struct {
	DB *gorm.DB
}

// NewDatasetDAO 创建 DatasetDAO，并注入全局数据库连接。
func NewDatasetDAO() *DatasetDAO {
	return &DatasetDAO{
		DB: config.DB,
	}
}

// Save 保存一条数据集记录。
func (d *DatasetDAO) Save(ctx context.Context, dataset *entity.Dataset) error {
	logger := daoLogger().With("dao", "DatasetDAO", "method", "Save")
	if dataset == nil {
		logger.Warn("save dataset skipped: dataset is nil")
		return ErrNilEntity
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("save dataset failed: with context", "error", err)
		return fmt.Errorf("save dataset failed: %w", err)
	}
	if err := dbConn.Create(dataset).Error; err != nil {
		logger.Error("save dataset failed: db create", "error", err)
		return fmt.Errorf("save dataset failed: %w", err)
	}
	logger.Info("save dataset success", "id", dataset.ID)
	return nil
}

// FindByID 根据主键查询单条数据集记录。
func (d *DatasetDAO) FindByID(ctx context.Context, id string) (*entity.Dataset, error) {
	logger := daoLogger().With("dao", "DatasetDAO", "method", "FindByID")
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("find dataset by id failed: with context", "id", id, "error", err)
		return nil, fmt.Errorf("find dataset by id failed: %w", err)
	}

	var dataset entity.Dataset
	err = dbConn.Where("id = ?", id).First(&dataset).Error
	if err != nil {
		logger.Warn("find dataset by id failed: db query", "id", id, "error", err)
		return nil, err
	}
	return &dataset, nil
}

// FindAll 按查询参数分页获取数据集列表与总数。
func (d *DatasetDAO) FindAll(ctx context.Context, params entity.QueryParams) ([]entity.Dataset, int64, error) {
	logger := daoLogger().With("dao", "DatasetDAO", "method", "FindAll")
	var datasets []entity.Dataset
	var total int64

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("find datasets failed: with context", "error", err)
		return nil, 0, fmt.Errorf("find datasets failed: %w", err)
	}

	dbConn = dbConn.Model(&entity.Dataset{})

	if params.Name != "" {
		dbConn = dbConn.Where("name = ?", params.Name)
	}
	if params.Keyword != "" {
		dbConn = dbConn.Where("name LIKE ?", "%"+params.Keyword+"%")
	}

	if err := dbConn.Count(&total).Error; err != nil {
		logger.Error("count datasets failed", "error", err)
		return nil, 0, fmt.Errorf("count datasets failed: %w", err)
	}

	offset, limit := pagination(params)
	err = dbConn.Order("created_at DESC").Offset(offset).Limit(limit).Find(&datasets).Error
	if err != nil {
		logger.Error("query datasets failed", "error", err)
		return nil, 0, fmt.Errorf("query datasets failed: %w", err)
	}

	return datasets, total, nil
}
