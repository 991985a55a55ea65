package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"automl_studio/dao"
	"automl_studio/entity"
	"automl_studio/workflow"
)

// ProjectService 项目生命周期管理：创建、查询、关联数据集、删除。
type ProjectService struct {
	projects *dao.ProjectDAO
	datasets *dao.DatasetDAO
	locker   workflow.Locker
}

func NewProjectService(locker workflow.Locker) *ProjectService {
	return &ProjectService{
		projects: dao.NewProjectDAO(),
		datasets: dao.NewDatasetDAO(),
		locker:   locker,
	}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	DataSource  string `json:"data_source"`
}

func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest) (*entity.Project, error) {
	if req == nil || req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	project := &entity.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		DataSource:  req.DataSource,
		Status:      entity.StatusCreated,
	}
	if err := s.projects.Save(ctx, project); err != nil {
		svcLogger().Error("创建项目失败", "name", req.Name, "error", err)
		return nil, err
	}
	svcLogger().Info("项目已创建", "project_id", project.ID, "name", project.Name)
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, projectID string) (*entity.Project, error) {
	return s.projects.FindByID(ctx, projectID)
}

func (s *ProjectService) List(ctx context.Context, params entity.QueryParams) (*entity.PageResult, error) {
	projects, total, err := s.projects.FindAll(ctx, params)
	if err != nil {
		return nil, err
	}
	return &entity.PageResult{Total: total, List: projects}, nil
}

// Delete 删除项目。阶段在途时拒绝，避免后台 goroutine 更新已删除的记录。
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	if projectID == "" {
		return dao.ErrInvalidID
	}
	if s.locker != nil && s.locker.IsHeld(ctx, projectID) {
		return fmt.Errorf("%w: project %s", ErrStageInFlight, projectID)
	}
	if err := s.projects.DeleteByID(ctx, projectID); err != nil {
		return err
	}
	svcLogger().Info("项目已删除", "project_id", projectID)
	return nil
}

// LinkDataset 将数据集关联到项目，只允许在分析开始前执行。
func (s *ProjectService) LinkDataset(ctx context.Context, projectID, datasetID string) (*entity.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != entity.StatusCreated && project.Status != entity.StatusDatasetLinked {
		return nil, fmt.Errorf("%w: cannot link dataset in status %s", workflow.ErrInvalidTransition, project.Status)
	}
	if _, err := s.datasets.FindByID(ctx, datasetID); err != nil {
		return nil, err
	}
	project.DatasetID = &datasetID
	project.Status = entity.StatusDatasetLinked
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	svcLogger().Info("数据集已关联", "project_id", projectID, "dataset_id", datasetID)
	return project, nil
}

type ProjectSummary struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByTaskType map[string]int64 `json:"by_task_type"`
}

func (s *ProjectService) Summary(ctx context.Context) (*ProjectSummary, error) {
	byStatus, err := s.projects.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byTaskType, err := s.projects.CountByTaskType(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range byStatus {
		total += n
	}
	return &ProjectSummary{Total: total, ByStatus: byStatus, ByTaskType: byTaskType}, nil
}
