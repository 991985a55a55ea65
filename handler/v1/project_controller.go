package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"automl_studio/entity"
	"automl_studio/service"
	"automl_studio/workflow"
)

type ProjectController struct {
	projectService *service.ProjectService
}

func NewProjectController(locker workflow.Locker) *ProjectController {
	return &ProjectController{projectService: service.NewProjectService(locker)}
}

// CreateProject handles POST /v1/projects
func (c *ProjectController) CreateProject(ctx *gin.Context) {
	var req service.CreateProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := c.projectService.Create(ctx.Request.Context(), &req)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, project)
}

// GetAllProjects handles GET /v1/projects
func (c *ProjectController) GetAllProjects(ctx *gin.Context) {
	var params entity.QueryParams
	if err := ctx.ShouldBindQuery(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.projectService.List(ctx.Request.Context(), params)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetProject handles GET /v1/projects/:id
func (c *ProjectController) GetProject(ctx *gin.Context) {
	project, err := c.projectService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /v1/projects/:id
// 有阶段在途时返回 409，不做级联中断。
func (c *ProjectController) DeleteProject(ctx *gin.Context) {
	if err := c.projectService.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

type linkDatasetPayload struct {
	DatasetID string `json:"dataset_id" binding:"required"`
}

// LinkDataset handles POST /v1/projects/:id/link-dataset
func (c *ProjectController) LinkDataset(ctx *gin.Context) {
	var payload linkDatasetPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := c.projectService.LinkDataset(ctx.Request.Context(), ctx.Param("id"), payload.DatasetID)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, project)
}

// GetProjectSummary handles GET /v1/projects/stats/summary
func (c *ProjectController) GetProjectSummary(ctx *gin.Context) {
	summary, err := c.projectService.Summary(ctx.Request.Context())
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, summary)
}
