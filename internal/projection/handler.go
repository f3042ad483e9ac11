package projection

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	httperr "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/stats/:scope", s.HandleQueryStats)
	r.GET("/v1/stats/:scope/:entity_id", s.HandleQueryStats)
}

// HandleQueryStats handles GET /v1/stats/:scope[/:entity_id]
// Query parameters: limit, and any <dimension>_id=<value id> link filter.
func (s *Service) HandleQueryStats(c *gin.Context) {
	var uri struct {
		Scope    string `uri:"scope" binding:"required"`
		EntityID string `uri:"entity_id"`
	}
	var query struct {
		Limit int `form:"limit"`
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	link, err := parseLink(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid dimension filter",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.QueryStats(c.Request.Context(), StatsQueryRequest{
		Scope:    uri.Scope,
		EntityID: uri.EntityID,
		Link:     link,
		Limit:    query.Limit,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidRequestError,
				Message:   "Invalid stats query",
				Details:   err.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query stats",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// parseLink collects every <dimension>_id query parameter.
func parseLink(c *gin.Context) (map[string]int64, error) {
	link := make(map[string]int64)
	for key, values := range c.Request.URL.Query() {
		if !strings.HasSuffix(key, dimension.LinkSuffix) || len(values) == 0 {
			continue
		}
		id, err := strconv.ParseInt(values[len(values)-1], 10, 64)
		if err != nil {
			return nil, invalidQueryf("%s must be an integer value id", key)
		}
		link[key] = id
	}
	return link, nil
}
