package registry

import (
	"net/http"
	"strconv"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cargoRequest struct {
	InvoiceNumber   string          `json:"invoice_number" binding:"required"`
	DestinationCity string          `json:"destination_city" binding:"required"`
	Value           decimal.Decimal `json:"value"`
	InvoiceDate     string          `json:"invoice_date" binding:"required"`
	VehicleCode     string          `json:"vehicle_code" binding:"required"`
	DistanceKm      int             `json:"distance_km"`
}

type deleteRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func ListVehiclesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := svc.Store().ListVehicles(c.Request.Context())
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": vehicles})
	}
}

func CreateVehicleHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var v models.Vehicle
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := svc.SaveVehicle(c.Request.Context(), &v); err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

func UpdateVehicleHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var v models.Vehicle
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		updated, err := svc.UpdateVehicle(c.Request.Context(), id, &v)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// ListCargoHandler lists active records; ?status=deleted lists the deleted ones.
func ListCargoHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			records []models.CargoRecord
			err     error
		)
		switch status := models.CargoStatus(c.DefaultQuery("status", string(models.CargoStatusActive))); status {
		case models.CargoStatusActive:
			records, err = svc.Store().ListActiveCargo(c.Request.Context())
		case models.CargoStatusDeleted:
			records, err = svc.Store().ListDeletedCargo(c.Request.Context())
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + strconv.Quote(string(status))})
			return
		}
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": records})
	}
}

func CreateCargoHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cargoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		date, err := utils.ParseDate(req.InvoiceDate)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("invoice_date", "%v", err))
			return
		}
		records, err := svc.CreateCargo(c.Request.Context(), []CargoInput{{
			InvoiceNumber: req.InvoiceNumber,
			City:          req.DestinationCity,
			Value:         req.Value,
			InvoiceDate:   date,
			VehicleCode:   req.VehicleCode,
			DistanceKm:    req.DistanceKm,
		}}, models.OriginManual)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, records[0])
	}
}

func DeleteCargoHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req deleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
			return
		}
		rec, err := svc.Store().SoftDeleteCargo(c.Request.Context(), id, req.Reason)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func ListFareParametersHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := svc.Store().ListFareParameters(c.Request.Context())
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": params})
	}
}

func ListFeeParametersHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := svc.Store().ListFeeParameters(c.Request.Context())
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": params})
	}
}

// RegisterRoutes mounts the registry endpoints on an /api group.
func RegisterRoutes(api *gin.RouterGroup, svc *Service) {
	api.GET("/veiculos", ListVehiclesHandler(svc))
	api.POST("/veiculos", CreateVehicleHandler(svc))
	api.PUT("/veiculos/:id", UpdateVehicleHandler(svc))

	api.GET("/cargas", ListCargoHandler(svc))
	api.POST("/cargas", CreateCargoHandler(svc))
	api.PUT("/cargas/:id/delete", DeleteCargoHandler(svc))

	api.GET("/parametros-valores", ListFareParametersHandler(svc))
	api.GET("/parametros-taxas", ListFeeParametersHandler(svc))
}
