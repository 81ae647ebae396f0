package erpsync

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
)

func CheckVehiclesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		diff, err := svc.CheckVehicles(c.Request.Context())
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, diff)
	}
}

func SyncVehiclesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SyncVehiclesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		res, err := svc.SyncVehicles(c.Request.Context(), req)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// CheckCargoHandler accepts sIni/sFim either as JSON body or query string.
func CheckCargoHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckCargoRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sIni and sFim are required"})
			return
		}
		start, err := utils.ParseDate(req.Start)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("sIni", "%v", err))
			return
		}
		end, err := utils.ParseDate(req.End)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("sFim", "%v", err))
			return
		}
		if err := ValidateRange(start, end, svc.MaxRangeDays()); err != nil {
			utils.RespondError(c, err)
			return
		}

		res, err := svc.CheckCargo(c.Request.Context(), start, end)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func SyncCargoHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SyncCargoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		res, err := svc.SyncCargo(c.Request.Context(), req)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func SyncHistoryHandler(store *models.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var entity models.SyncEntity
		if v := strings.TrimSpace(c.Query("entity")); v != "" {
			e, err := models.ParseSyncEntity(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			entity = e
		}
		// the store applies the default and the cap
		limit, _ := strconv.Atoi(strings.TrimSpace(c.Query("limit")))

		runs, err := store.ListSyncRuns(c.Request.Context(), entity, limit)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": runs})
	}
}

