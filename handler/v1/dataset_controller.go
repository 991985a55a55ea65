package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"automl_studio/entity"
	"automl_studio/service"
)

type DatasetController struct {
	datasetService *service.DatasetService
}

func NewDatasetController() *DatasetController {
	return &DatasetController{datasetService: service.NewDatasetService()}
}

// RegisterDataset handles POST /v1/datasets
func (c *DatasetController) RegisterDataset(ctx *gin.Context) {
	var req service.RegisterDatasetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dataset, err := c.datasetService.Register(ctx.Request.Context(), &req)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dataset)
}

// GetAllDatasets handles GET /v1/datasets
func (c *DatasetController) GetAllDatasets(ctx *gin.Context) {
	var params entity.QueryParams
	if err := ctx.ShouldBindQuery(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := c.datasetService.List(ctx.Request.Context(), params)
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// GetDataset handles GET /v1/datasets/:id
func (c *DatasetController) GetDataset(ctx *gin.Context) {
	dataset, err := c.datasetService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeHTTPError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dataset)
}
