package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"automl_studio/entity"
	"automl_studio/service"
)

// WorkflowController 流水线操作：启动各阶段、模型选择增改查、审批。
// 后台阶段统一返回 202，结果靠 /status 轮询拿。
type WorkflowController struct {
	workflowService *service.WorkflowService
	statusService   *service.StatusService
}

func NewWorkflowController(wf *service.WorkflowService) *WorkflowController {
	return &WorkflowController{
		workflowService: wf,
		statusService:   service.NewStatusService(wf),
	}
}

// StartAnalysis handles POST /v1/projects/:id/analysis
func (c *WorkflowController) StartAnalysis(ctx *gin.Context) {
	if err := c.workflowService.StartAnalysis(ctx.Request.Context(), ctx.Param("id")); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"message": "analysis started", "status": entity.StatusAnalyzing})
}

type targetColumnPayload struct {
	TargetColumn string `json:"target_column" binding:"required"`
	TaskType     string `json:"task_type"`
}

// SetTargetColumn handles PUT /v1/projects/:id/target-column
func (c *WorkflowController) SetTargetColumn(ctx *gin.Context) {
	var payload targetColumnPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := c.workflowService.SetTargetColumn(ctx.Request.Context(), ctx.Param("id"), payload.TargetColumn, payload.TaskType)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"project_id":    project.ID,
		"target_column": project.TargetColumn,
		"task_type":     project.TaskType,
	})
}

type preprocessingPayload struct {
	Mode   string                      `json:"mode"` // auto | custom
	Config *entity.PreprocessingConfig `json:"config"`
}

// StartPreprocessing handles POST /v1/projects/:id/preprocessing
func (c *WorkflowController) StartPreprocessing(ctx *gin.Context) {
	var payload preprocessingPayload
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&payload); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := c.workflowService.StartPreprocessing(ctx.Request.Context(), ctx.Param("id"), payload.Mode, payload.Config); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"message": "preprocessing started", "status": entity.StatusPreprocessing})
}

// RunModelSelection handles POST /v1/projects/:id/model-selection
func (c *WorkflowController) RunModelSelection(ctx *gin.Context) {
	result, err := c.workflowService.SelectModels(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetModelSelection handles GET /v1/projects/:id/model-selection
func (c *WorkflowController) GetModelSelection(ctx *gin.Context) {
	result, err := c.workflowService.GetModelSelection(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}
	if result == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "model selection not run yet"})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

type modelSelectionPayload struct {
	Models []entity.ModelSelection `json:"models" binding:"required"`
}

// UpdateModelSelection handles PUT /v1/projects/:id/model-selection
func (c *WorkflowController) UpdateModelSelection(ctx *gin.Context) {
	var payload modelSelectionPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.workflowService.UpdateModelSelection(ctx.Request.Context(), ctx.Param("id"), payload.Models)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetModelCatalog handles GET /v1/models/catalog
func (c *WorkflowController) GetModelCatalog(ctx *gin.Context) {
	taskType := ctx.DefaultQuery("task_type", "classification")
	if taskType != "classification" && taskType != "regression" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "task_type must be classification or regression"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"task_type": taskType,
		"models":    c.workflowService.Catalog(taskType),
	})
}

// StartTraining handles POST /v1/projects/:id/training
func (c *WorkflowController) StartTraining(ctx *gin.Context) {
	if err := c.workflowService.StartTraining(ctx.Request.Context(), ctx.Param("id")); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"message": "training started", "status": entity.StatusTraining})
}

// GetStatus handles GET /v1/projects/:id/status
func (c *WorkflowController) GetStatus(ctx *gin.Context) {
	payload, err := c.statusService.GetStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, payload)
}

// GetTrainingStatus handles GET /v1/projects/:id/training-status
func (c *WorkflowController) GetTrainingStatus(ctx *gin.Context) {
	payload, err := c.statusService.GetTrainingStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, payload)
}

type approvalPayload struct {
	Stage  string `json:"stage" binding:"required"`
	Reason string `json:"reason"`
}

func parseStage(raw string) (entity.Stage, error) {
	switch entity.Stage(raw) {
	case entity.StageAnalysis, entity.StagePreprocessing, entity.StageTraining:
		return entity.Stage(raw), nil
	default:
		return "", fmt.Errorf("unknown stage %q", raw)
	}
}

// ApproveStage handles POST /v1/projects/:id/approve
func (c *WorkflowController) ApproveStage(ctx *gin.Context) {
	var payload approvalPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stage, err := parseStage(payload.Stage)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.workflowService.Approve(ctx.Request.Context(), ctx.Param("id"), stage); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "stage approved"})
}

// RejectStage handles POST /v1/projects/:id/reject
func (c *WorkflowController) RejectStage(ctx *gin.Context) {
	var payload approvalPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stage, err := parseStage(payload.Stage)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.workflowService.Reject(ctx.Request.Context(), ctx.Param("id"), stage, payload.Reason); err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "stage rejected"})
}
