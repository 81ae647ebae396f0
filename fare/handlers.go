package fare

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
)

type deleteRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func CalculateHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		q, err := svc.Quote(c.Request.Context(), req)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

func CreateFreightEntryHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		entry, err := svc.Record(c.Request.Context(), req)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

// ListFreightEntriesHandler serves ?from=&to= (both optional, inclusive).
func ListFreightEntriesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var from, to time.Time
		if v := strings.TrimSpace(c.Query("from")); v != "" {
			t, err := utils.ParseDate(v)
			if err != nil {
				utils.RespondError(c, utils.NewValidationError("from", "%v", err))
				return
			}
			from = t
		}
		if v := strings.TrimSpace(c.Query("to")); v != "" {
			t, err := utils.ParseDate(v)
			if err != nil {
				utils.RespondError(c, utils.NewValidationError("to", "%v", err))
				return
			}
			to = t
		}
		entries, err := svc.List(c.Request.Context(), from, to)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": entries})
	}
}

func DeleteFreightEntryHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		var req deleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
			return
		}
		entry, err := svc.Delete(c.Request.Context(), uint(id), req.Reason)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
