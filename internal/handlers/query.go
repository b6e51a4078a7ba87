package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridhq/tablecache/internal/services"
	apperrors "github.com/gridhq/tablecache/pkg/errors"
	"github.com/gridhq/tablecache/pkg/response"
	"github.com/gridhq/tablecache/pkg/validator"
)

// QueryHandler exposes the agent-facing query endpoints.
type QueryHandler struct {
	queries *services.QueryService
}

// NewQueryHandler constructs a QueryHandler.
func NewQueryHandler(queries *services.QueryService) (*QueryHandler, error) {
	if queries == nil {
		return nil, errors.New("handlers: query service must be provided")
	}
	return &QueryHandler{queries: queries}, nil
}

// Query serves POST /api/tables/:tableID/query.
func (h *QueryHandler) Query(c *gin.Context) {
	var input services.QueryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid query payload").WithInternal(err))
		return
	}
	if err := validator.ValidateStruct(input); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	result, err := h.queries.Query(c.Request.Context(), c.Param("tableID"), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	hit := result.CacheHit
	response.SuccessWithMeta(c, http.StatusOK, result.Records, &response.Meta{
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      result.Total,
		TotalPages: totalPages(result.Total, result.PerPage),
		CacheHit:   &hit,
	})
}

// CacheInfo serves GET /api/tables/:tableID/cache.
func (h *QueryHandler) CacheInfo(c *gin.Context) {
	info, err := h.queries.CacheInfo(c.Request.Context(), c.Param("tableID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

func totalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	return int(pages)
}
