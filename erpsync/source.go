package erpsync

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Source is the read-only view of the ERP.
type Source interface {
	FetchVehicles(ctx context.Context) ([]models.Vehicle, error)
	// FetchCargoLines returns raw invoice lines emitted in [start, end] (dates, inclusive).
	FetchCargoLines(ctx context.Context, start, end time.Time) ([]reconcile.ERPCargoLine, error)
}

// Issued service invoices (LVR) with their delivery order (PDD) and the
// customer's delivery address city. Cancelled invoices have INDSTULVRSVC <> 1.
const cargoLinesQuery = `
SELECT
	PDD.NUMSEQETGPDD AS NumeroCarga,
	PDD.CODVEC AS COD_VEICULO,
	LVR.NUMNF_LVRSVC AS ID_Carga_ERP,
	LVR.DATEMSNF_LVRSVC AS DataCTE,
	LVR.VALSVCTOTLVRSVC AS ValorCTE,
	RTRIM(CDD.DESCDD) AS Cidade
FROM dbo.IRFTLVRSVC LVR (NOLOCK)
LEFT JOIN dbo.IBETPDDSVCNF_ PDD (NOLOCK) ON PDD.CODEMP = LVR.CODEMP AND PDD.NUMDOCTPTPDD = LVR.NUMNF_LVRSVC AND PDD.INDSERDOCTPTPDD = LVR.CODSERNF_LVRSVC
LEFT JOIN dbo.IBETCET CET (NOLOCK) ON LVR.CODEMP = CET.CODEMP AND LVR.CODCET = CET.CODCET
LEFT JOIN dbo.IBETEDRCET EDR (NOLOCK) ON CET.CODEMP = EDR.CODEMP AND CET.CODCET = EDR.CODCET AND EDR.CODTPOEDR = 1
LEFT JOIN dbo.IBETCDD CDD (NOLOCK) ON EDR.CODEMP = CDD.CODEMP AND EDR.CODPAS = CDD.CODPAS AND EDR.CODUF_ = CDD.CODUF_ AND EDR.CODCDD = CDD.CODCDD
WHERE LVR.DATEMSNF_LVRSVC >= @sIni AND LVR.DATEMSNF_LVRSVC < @sFim AND LVR.INDSTULVRSVC = 1
`

// defaultVehicleQuery reads a view the ERP DBA publishes with the same column
// names as the vehicle spreadsheet. Override with ERP_VEHICLE_QUERY.
const defaultVehicleQuery = `SELECT COD_Veiculo, Placa, TipoVeiculo, Motorista, CapacidadeKG, Ativo FROM dbo.vw_frete360_veiculos`

type erpCargoRow struct {
	CargoNumber   *string             `gorm:"column:NumeroCarga"`
	VehicleCode   *string             `gorm:"column:COD_VEICULO"`
	InvoiceNumber *string             `gorm:"column:ID_Carga_ERP"`
	InvoiceDate   *time.Time          `gorm:"column:DataCTE"`
	Value         decimal.NullDecimal `gorm:"column:ValorCTE"`
	City          *string             `gorm:"column:Cidade"`
}

type erpVehicleRow struct {
	Code       *string `gorm:"column:COD_Veiculo"`
	Plate      *string `gorm:"column:Placa"`
	Type       *string `gorm:"column:TipoVeiculo"`
	Driver     *string `gorm:"column:Motorista"`
	CapacityKg *int    `gorm:"column:CapacidadeKG"`
	Active     *bool   `gorm:"column:Ativo"`
}

// SQLServerSource reads the Flexx ERP database.
type SQLServerSource struct {
	db           *gorm.DB
	vehicleQuery string
}

func NewSQLServerSource(db *gorm.DB) *SQLServerSource {
	q := strings.TrimSpace(os.Getenv("ERP_VEHICLE_QUERY"))
	if q == "" {
		q = defaultVehicleQuery
	}
	return &SQLServerSource{db: db, vehicleQuery: q}
}

func (s *SQLServerSource) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	if s.db == nil {
		return nil, &utils.SourceUnavailableError{Err: errors.New("erp database is not configured")}
	}
	var rows []erpVehicleRow
	if err := s.db.WithContext(ctx).Raw(s.vehicleQuery).Scan(&rows).Error; err != nil {
		return nil, &utils.SourceUnavailableError{Err: err}
	}

	out := make([]models.Vehicle, 0, len(rows))
	for _, r := range rows {
		v := models.Vehicle{
			Code:       str(r.Code),
			Plate:      str(r.Plate),
			Type:       str(r.Type),
			DriverName: str(r.Driver),
			Active:     true,
		}
		if r.CapacityKg != nil {
			v.CapacityKg = *r.CapacityKg
		}
		if r.Active != nil {
			v.Active = *r.Active
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *SQLServerSource) FetchCargoLines(ctx context.Context, start, end time.Time) ([]reconcile.ERPCargoLine, error) {
	if s.db == nil {
		return nil, &utils.SourceUnavailableError{Err: errors.New("erp database is not configured")}
	}
	// the upper bound is exclusive so invoices emitted during the last day are included
	var rows []erpCargoRow
	err := s.db.WithContext(ctx).
		Raw(cargoLinesQuery, sql.Named("sIni", start), sql.Named("sFim", end.AddDate(0, 0, 1))).
		Scan(&rows).Error
	if err != nil {
		return nil, &utils.SourceUnavailableError{Err: err}
	}

	out := make([]reconcile.ERPCargoLine, 0, len(rows))
	for _, r := range rows {
		line := reconcile.ERPCargoLine{
			InvoiceNumber: str(r.InvoiceNumber),
			City:          str(r.City),
			VehicleCode:   str(r.VehicleCode),
			CargoNumber:   str(r.CargoNumber),
			Value:         decimal.Zero,
		}
		if r.Value.Valid {
			line.Value = r.Value.Decimal
		}
		if r.InvoiceDate != nil {
			line.InvoiceDate = utils.DateOnly(*r.InvoiceDate)
		}
		out = append(out, line)
	}
	return out, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
