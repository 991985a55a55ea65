package dao

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"automl_studio/config"
	"automl_studio/entity"
)

func TestMain(m *testing.M) {
	config.InitTestConfig()
	config.RegisterTables(&entity.Project{}, &entity.Dataset{})
	if err := config.InitDB(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestProject(name string) *entity.Project {
	return &entity.Project{
		ID:     uuid.NewString(),
		Name:   name,
		Status: entity.StatusCreated,
	}
}

func TestProjectDAOSaveAndFind(t *testing.T) {
	d := NewProjectDAO()
	ctx := context.Background()

	project := newTestProject(fmt.Sprintf("churn_%d", time.Now().UnixNano()))
	require.NoError(t, d.Save(ctx, project))

	got, err := d.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Name, got.Name)
	assert.Equal(t, entity.StatusCreated, got.Status)

	_, err = d.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = d.FindByID(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.ErrorIs(t, d.Save(ctx, nil), ErrNilEntity)
}

func TestProjectDAOUpdatePersistsWorkflowFields(t *testing.T) {
	d := NewProjectDAO()
	ctx := context.Background()

	project := newTestProject("update_target")
	require.NoError(t, d.Save(ctx, project))

	datasetID := uuid.NewString()
	project.DatasetID = &datasetID
	project.Status = entity.StatusDatasetLinked
	project.AppendEvent(entity.WorkflowEvent{
		Stage:     entity.StageAnalysis,
		Status:    entity.EventStarted,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, d.Update(ctx, project))

	got, err := d.FindByID(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DatasetID)
	assert.Equal(t, datasetID, *got.DatasetID)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, entity.StageAnalysis, got.Events()[0].Stage)
}

func TestProjectDAODelete(t *testing.T) {
	d := NewProjectDAO()
	ctx := context.Background()

	project := newTestProject("delete_me")
	require.NoError(t, d.Save(ctx, project))
	require.NoError(t, d.DeleteByID(ctx, project.ID))

	_, err := d.FindByID(ctx, project.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, d.DeleteByID(ctx, project.ID), gorm.ErrRecordNotFound)
}

func TestProjectDAOFindAllFilters(t *testing.T) {
	d := NewProjectDAO()
	ctx := context.Background()

	tag := fmt.Sprintf("filter_%d", time.Now().UnixNano())
	taskType := "classification"
	for i := 0; i < 3; i++ {
		p := newTestProject(fmt.Sprintf("%s_%d", tag, i))
		p.Status = entity.StatusTrained
		p.TaskType = &taskType
		require.NoError(t, d.Save(ctx, p))
	}

	projects, total, err := d.FindAll(ctx, entity.QueryParams{
		Keyword: tag,
		Status:  string(entity.StatusTrained),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, projects, 3)

	projects, total, err = d.FindAll(ctx, entity.QueryParams{Keyword: tag, Status: string(entity.StatusCreated)})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, projects)

	// 分页
	projects, total, err = d.FindAll(ctx, entity.QueryParams{Keyword: tag, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, projects, 2)
}

func TestProjectDAOCounts(t *testing.T) {
	d := NewProjectDAO()
	ctx := context.Background()

	taskType := "regression"
	p := newTestProject("count_me")
	p.Status = entity.StatusAnalyzing
	p.TaskType = &taskType
	require.NoError(t, d.Save(ctx, p))

	byStatus, err := d.CountByStatus(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, byStatus[string(entity.StatusAnalyzing)], int64(1))

	byTask, err := d.CountByTaskType(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, byTask["regression"], int64(1))
}

func TestDatasetDAO(t *testing.T) {
	d := NewDatasetDAO()
	ctx := context.Background()

	dataset := &entity.Dataset{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("iris_%d", time.Now().UnixNano()),
		FilePath:    "/data/iris.csv",
		RowCount:    150,
		ColumnCount: 5,
	}
	require.NoError(t, d.Save(ctx, dataset))

	got, err := d.FindByID(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, 150, got.RowCount)

	datasets, total, err := d.FindAll(ctx, entity.QueryParams{Keyword: dataset.Name})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, datasets, 1)
	assert.Equal(t, dataset.ID, datasets[0].ID)
}
