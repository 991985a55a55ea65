package dao

import (
	"context"
	"fmt"
	"strings"

	"automl_studio/config"
	"automl_studio/entity"

	"gorm.io/gorm"
)

type ProjectDAO struct {
	DB *gorm.DB
}

// NewProjectDAO 创建 ProjectDAO，并注入全局数据库连接。
func NewProjectDAO() *ProjectDAO {
	return &ProjectDAO{
		DB: config.DB,
	}
}

// Save 保存一条项目记录。
func (d *ProjectDAO) Save(ctx context.Context, project *entity.Project) error {
	logger := daoLogger().With("dao", "ProjectDAO", "method", "Save")
	if project == nil {
		logger.Warn("save project skipped: project is nil")
		return ErrNilEntity
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("save project failed: with context", "error", err)
		return fmt.Errorf("save project failed: %w", err)
	}
	if err := dbConn.Create(project).Error; err != nil {
		logger.Error("save project failed: db create", "error", err)
		return fmt.Errorf("save project failed: %w", err)
	}
	logger.Info("save project success", "id", project.ID)
	return nil
}

// FindByID 根据主键查询单条项目记录。
func (d *ProjectDAO) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	logger := daoLogger().With("dao", "ProjectDAO", "method", "FindByID")
	if strings.TrimSpace(id) == "" {
		logger.Warn("find project by id skipped: empty id")
		return nil, ErrInvalidID
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("find project by id failed: with context", "id", id, "error", err)
		return nil, fmt.Errorf("find project by id failed: %w", err)
	}

	var project entity.Project
	err = dbConn.Where("id = ?", id).First(&project).Error
	if err != nil {
		logger.Warn("find project by id failed: db query", "id", id, "error", err)
		return nil, err
	}
	return &project, nil
}

// Update 整行回写项目记录。阶段执行期间只有持锁方会调用，所以整行保存是安全的。
func (d *ProjectDAO) Update(ctx context.Context, project *entity.Project) error {
	logger := daoLogger().With("dao", "ProjectDAO", "method", "Update")
	if project == nil {
		return ErrNilEntity
	}
	if strings.TrimSpace(project.ID) == "" {
		return ErrInvalidID
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("update project failed: with context", "id", project.ID, "error", err)
		return fmt.Errorf("update project failed: %w", err)
	}
	if err := dbConn.Save(project).Error; err != nil {
		logger.Error("update project failed: db save", "id", project.ID, "error", err)
		return fmt.Errorf("update project failed: %w", err)
	}
	return nil
}

// DeleteByID 删除项目记录。
func (d *ProjectDAO) DeleteByID(ctx context.Context, id string) error {
	logger := daoLogger().With("dao", "ProjectDAO", "method", "DeleteByID")
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("delete project failed: with context", "id", id, "error", err)
		return fmt.Errorf("delete project failed: %w", err)
	}

	result := dbConn.Delete(&entity.Project{}, "id = ?", id)
	if result.Error != nil {
		logger.Error("delete project failed: db delete", "id", id, "error", result.Error)
		return fmt.Errorf("delete project failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	logger.Info("delete project success", "id", id)
	return nil
}

// FindAll 按查询参数分页获取项目列表与总数。
func (d *ProjectDAO) FindAll(ctx context.Context, params entity.QueryParams) ([]entity.Project, int64, error) {
	logger := daoLogger().With("dao", "ProjectDAO", "method", "FindAll")
	var projects []entity.Project
	var total int64

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		logger.Error("find projects failed: with context", "error", err)
		return nil, 0, fmt.Errorf("find projects failed: %w", err)
	}

	dbConn = dbConn.Model(&entity.Project{})

	// 1. 指标组合过滤
	if params.Status != "" {
		dbConn = dbConn.Where("status = ?", params.Status)
	}
	if params.TaskType != "" {
		dbConn = dbConn.Where("task_type = ?", params.TaskType)
	}
	if params.Keyword != "" {
		dbConn = dbConn.Where("name LIKE ?", "%"+params.Keyword+"%")
	}

	// 2. 获取总数
	if err := dbConn.Count(&total).Error; err != nil {
		logger.Error("count projects failed", "error", err)
		return nil, 0, fmt.Errorf("count projects failed: %w", err)
	}

	// 3. 执行分页查询 (默认创建时间降序)
	offset, limit := pagination(params)
	err = dbConn.Order("created_at DESC").Offset(offset).Limit(limit).Find(&projects).Error
	if err != nil {
		logger.Error("query projects failed", "error", err)
		return nil, 0, fmt.Errorf("query projects failed: %w", err)
	}

	return projects, total, nil
}

// CountByStatus 按状态统计项目数量（看板汇总用）。
func (d *ProjectDAO) CountByStatus(ctx context.Context) (map[string]int64, error) {
	logger := daoLogger().With("dao", "ProjectDAO", "method", "CountByStatus")

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("count projects by status failed: %w", err)
	}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err = dbConn.Model(&entity.Project{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		logger.Error("count projects by status failed", "error", err)
		return nil, fmt.Errorf("count projects by status failed: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// CountByTaskType 按任务类型统计项目数量，task_type 为空的不计入。
func (d *ProjectDAO) CountByTaskType(ctx context.Context) (map[string]int64, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("count projects by task type failed: %w", err)
	}

	type row struct {
		TaskType string
		Count    int64
	}
	var rows []row
	err = dbConn.Model(&entity.Project{}).
		Select("task_type, count(*) as count").
		Where("task_type IS NOT NULL AND task_type != ''").
		Group("task_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count projects by task type failed: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.TaskType] = r.Count
	}
	return counts, nil
}
