package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"automl_studio/config"
	"automl_studio/entity"
	"automl_studio/router"
	"automl_studio/service"
)

var testRouter *gin.Engine

func TestMain(m *testing.M) {
	// 初始化内存配置与数据库
	config.InitTestConfig()
	config.RegisterTables(&entity.Project{}, &entity.Dataset{})
	if err := config.InitDB(); err != nil {
		panic(err)
	}

	// 设置 Gin 为测试模式
	gin.SetMode(gin.TestMode)
	testRouter = router.SetupRouter()

	// 运行测试
	code := m.Run()
	os.Exit(code)
}

// performRequest 执行请求的辅助函数
func performRequest(r http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performJSON(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	}
	return performRequest(testRouter, method, path, body)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}

// writeChurnCSV 生成一个可以走完整个流水线的小数据集。
func writeChurnCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.csv")
	content := "age,plan,churn\n"
	plans := []string{"basic", "premium", "family"}
	for i := 0; i < 80; i++ {
		churn := "no"
		if (18+i)%3 == 0 {
			churn = "yes"
		}
		content += fmt.Sprintf("%d,%s,%s\n", 18+i, plans[i%len(plans)], churn)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func registerDataset(t *testing.T, csvPath string) string {
	t.Helper()
	w := performJSON(t, http.MethodPost, "/v1/datasets", service.RegisterDatasetRequest{
		Name:     fmt.Sprintf("churn_%d", time.Now().UnixNano()),
		FilePath: csvPath,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var dataset entity.Dataset
	decodeJSON(t, w, &dataset)
	require.NotEmpty(t, dataset.ID)
	return dataset.ID
}

func createProject(t *testing.T, description string) string {
	t.Helper()
	w := performJSON(t, http.MethodPost, "/v1/projects", service.CreateProjectRequest{
		Name:        fmt.Sprintf("proj_%d", time.Now().UnixNano()),
		Description: description,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var project entity.Project
	decodeJSON(t, w, &project)
	require.NotEmpty(t, project.ID)
	return project.ID
}

func linkDataset(t *testing.T, projectID, datasetID string) {
	t.Helper()
	w := performJSON(t, http.MethodPost, "/v1/projects/"+projectID+"/link-dataset", map[string]string{
		"dataset_id": datasetID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func getStatus(t *testing.T, projectID string) *service.StatusPayload {
	t.Helper()
	w := performRequest(testRouter, http.MethodGet, "/v1/projects/"+projectID+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload service.StatusPayload
	decodeJSON(t, w, &payload)
	return &payload
}

func waitForProjectStatus(t *testing.T, projectID string, want entity.Status) *service.StatusPayload {
	t.Helper()
	var last *service.StatusPayload
	require.Eventually(t, func() bool {
		last = getStatus(t, projectID)
		return last.Status == want
	}, 15*time.Second, 20*time.Millisecond, "waiting for status %s", want)
	return last
}
