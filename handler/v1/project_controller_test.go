package v1_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl_studio/entity"
	"automl_studio/service"
)

func TestProjectAPI(t *testing.T) {
	t.Run("Create Project", func(t *testing.T) {
		w := performJSON(t, http.MethodPost, "/v1/projects", service.CreateProjectRequest{
			Name:        "churn prediction",
			Description: "predict churn",
			DataSource:  "upload",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var project entity.Project
		decodeJSON(t, w, &project)
		assert.NotEmpty(t, project.ID)
		assert.Equal(t, entity.StatusCreated, project.Status)
	})

	t.Run("Create Project Without Name", func(t *testing.T) {
		w := performJSON(t, http.MethodPost, "/v1/projects", map[string]string{"description": "nameless"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Get Project Not Found", func(t *testing.T) {
		w := performRequest(testRouter, http.MethodGet, "/v1/projects/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("List Projects", func(t *testing.T) {
		createProject(t, "for listing")

		w := performRequest(testRouter, http.MethodGet, "/v1/projects?page=1&page_size=100", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result entity.PageResult
		decodeJSON(t, w, &result)
		assert.GreaterOrEqual(t, result.Total, int64(1))

		// 状态过滤
		w = performRequest(testRouter, http.MethodGet, "/v1/projects?status=created&page_size=100", nil)
		require.Equal(t, http.StatusOK, w.Code)
		decodeJSON(t, w, &result)
		assert.GreaterOrEqual(t, result.Total, int64(1))
	})

	t.Run("Delete Project", func(t *testing.T) {
		projectID := createProject(t, "to delete")

		w := performRequest(testRouter, http.MethodDelete, "/v1/projects/"+projectID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = performRequest(testRouter, http.MethodGet, "/v1/projects/"+projectID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = performRequest(testRouter, http.MethodDelete, "/v1/projects/"+projectID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Stats Summary", func(t *testing.T) {
		createProject(t, "for summary")

		w := performRequest(testRouter, http.MethodGet, "/v1/projects/stats/summary", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var summary service.ProjectSummary
		decodeJSON(t, w, &summary)
		assert.GreaterOrEqual(t, summary.Total, int64(1))
		assert.GreaterOrEqual(t, summary.ByStatus[string(entity.StatusCreated)], int64(1))
	})
}

func TestLinkDatasetValidation(t *testing.T) {
	projectID := createProject(t, "link tests")

	t.Run("Unknown Dataset", func(t *testing.T) {
		w := performJSON(t, http.MethodPost, "/v1/projects/"+projectID+"/link-dataset", map[string]string{
			"dataset_id": uuid.NewString(),
		})
		assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	})

	t.Run("Relink Before Analysis", func(t *testing.T) {
		first := registerDataset(t, writeChurnCSV(t))
		second := registerDataset(t, writeChurnCSV(t))
		linkDataset(t, projectID, first)
		linkDataset(t, projectID, second)

		status := getStatus(t, projectID)
		assert.Equal(t, entity.StatusDatasetLinked, status.Status)
	})
}

func TestDatasetAPI(t *testing.T) {
	t.Run("Register Dataset", func(t *testing.T) {
		csvPath := writeChurnCSV(t)
		datasetID := registerDataset(t, csvPath)

		w := performRequest(testRouter, http.MethodGet, "/v1/datasets/"+datasetID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var dataset entity.Dataset
		decodeJSON(t, w, &dataset)
		assert.Equal(t, 80, dataset.RowCount)
		assert.Equal(t, 3, dataset.ColumnCount)
		assert.Equal(t, csvPath, dataset.FilePath)
	})

	t.Run("Register Missing File", func(t *testing.T) {
		w := performJSON(t, http.MethodPost, "/v1/datasets", service.RegisterDatasetRequest{
			Name:     "ghost",
			FilePath: "/nonexistent/file.csv",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})

	t.Run("List Datasets", func(t *testing.T) {
		registerDataset(t, writeChurnCSV(t))

		w := performRequest(testRouter, http.MethodGet, "/v1/datasets?page_size=100", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result entity.PageResult
		decodeJSON(t, w, &result)
		assert.GreaterOrEqual(t, result.Total, int64(1))
	})
}
