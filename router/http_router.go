package router

import (
	v2 "automl_studio/handler/v1"
	"automl_studio/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	workflowService := service.NewWorkflowService()
	projectController := v2.NewProjectController(workflowService.Runner().Locker())
	workflowController := v2.NewWorkflowController(workflowService)
	datasetController := v2.NewDatasetController()

	r := gin.Default()
	r.Use(gin.Recovery())

	v1Group := r.Group("/v1")
	{
		// Project CRUD + workflow routes
		projects := v1Group.Group("/projects")
		{
			projects.POST("", projectController.CreateProject)
			projects.GET("", projectController.GetAllProjects)
			projects.GET("/stats/summary", projectController.GetProjectSummary)
			projects.GET("/:id", projectController.GetProject)
			projects.DELETE("/:id", projectController.DeleteProject)
			projects.POST("/:id/link-dataset", projectController.LinkDataset)

			projects.POST("/:id/analysis", workflowController.StartAnalysis)
			projects.PUT("/:id/target-column", workflowController.SetTargetColumn)
			projects.POST("/:id/preprocessing", workflowController.StartPreprocessing)
			projects.POST("/:id/model-selection", workflowController.RunModelSelection)
			projects.GET("/:id/model-selection", workflowController.GetModelSelection)
			projects.PUT("/:id/model-selection", workflowController.UpdateModelSelection)
			projects.POST("/:id/training", workflowController.StartTraining)
			projects.GET("/:id/status", workflowController.GetStatus)
			projects.GET("/:id/training-status", workflowController.GetTrainingStatus)
			projects.POST("/:id/approve", workflowController.ApproveStage)
			projects.POST("/:id/reject", workflowController.RejectStage)
		}

		// Model catalog routes
		models := v1Group.Group("/models")
		{
			models.GET("/catalog", workflowController.GetModelCatalog)
		}

		// Dataset routes
		datasets := v1Group.Group("/datasets")
		{
			datasets.POST("", datasetController.RegisterDataset)
			datasets.GET("", datasetController.GetAllDatasets)
			datasets.GET("/:id", datasetController.GetDataset)
		}
	}

	return r
}
