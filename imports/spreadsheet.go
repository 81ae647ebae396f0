package imports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/registry"
	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindVehicles       Kind = "veiculos"
	KindCargo          Kind = "cargas"
	KindFareParameters Kind = "parametros-valores"
	KindFeeParameters  Kind = "parametros-taxas"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindVehicles, KindCargo, KindFareParameters, KindFeeParameters:
		return k, nil
	}
	return "", utils.NewValidationError("type", "unknown import type %q", s)
}

// Result reports how many rows were written and why the others were skipped.
type Result struct {
	Count  int      `json:"count"`
	Errors []string `json:"errors"`
}

func (r *Result) lineError(line int, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("line %d: %s", line, fmt.Sprintf(format, args...)))
}

type Importer struct {
	registry *registry.Service
	logger   *logrus.Logger
}

func NewImporter(reg *registry.Service, logger *logrus.Logger) *Importer {
	return &Importer{registry: reg, logger: logger}
}

// ImportSpreadsheet parses every row, collects row errors and writes the
// valid rows in one transaction. A write failure discards all rows.
func (im *Importer) ImportSpreadsheet(ctx context.Context, kind Kind, filename string, r io.Reader) (*Result, error) {
	t, err := readTable(filename, r)
	if err != nil {
		return nil, err
	}

	res := &Result{Errors: []string{}}
	switch kind {
	case KindVehicles:
		err = im.importVehicles(ctx, t, res)
	case KindCargo:
		err = im.importCargo(ctx, t, res)
	case KindFareParameters:
		err = im.importFareParameters(ctx, t, res)
	case KindFeeParameters:
		err = im.importFeeParameters(ctx, t, res)
	default:
		err = utils.NewValidationError("type", "unknown import type %q", kind)
	}
	if err != nil {
		return nil, err
	}

	im.logger.WithFields(logrus.Fields{
		"module":   "imports",
		"funcName": "ImportSpreadsheet",
		"kind":     kind,
		"file":     filename,
		"count":    res.Count,
		"rejected": len(res.Errors),
	}).Info("spreadsheet imported")
	return res, nil
}

func (im *Importer) importVehicles(ctx context.Context, t *table, res *Result) error {
	if err := t.require("COD_Veiculo", "Placa", "TipoVeiculo"); err != nil {
		return err
	}
	var vehicles []models.Vehicle
	seen := map[string]int{}
	for i, row := range t.rows {
		line := i + 2
		if blankRow(row) {
			continue
		}
		code := reconcile.VehicleKey(t.cell(row, "COD_Veiculo"))
		if code == "" {
			res.lineError(line, "COD_Veiculo is required")
			continue
		}
		if first, dup := seen[code]; dup {
			res.lineError(line, "vehicle %s already listed on line %d", code, first)
			continue
		}
		capacity, err := parseInt(t.cell(row, "CapacidadeKG"))
		if err != nil {
			res.lineError(line, "CapacidadeKG: %v", err)
			continue
		}
		active, err := parseActive(t.cell(row, "Ativo"))
		if err != nil {
			res.lineError(line, "%v", err)
			continue
		}
		v := models.Vehicle{
			Code:       code,
			Plate:      t.cell(row, "Placa"),
			Type:       t.cell(row, "TipoVeiculo"),
			DriverName: t.cell(row, "Motorista"),
			CapacityKg: capacity,
			Active:     active,
		}
		if err := utils.ValidateStruct(v); err != nil {
			res.lineError(line, "%v", utils.ProcessValidationErrors(err))
			continue
		}
		seen[code] = line
		vehicles = append(vehicles, v)
	}
	if len(vehicles) == 0 {
		return nil
	}
	if err := im.registry.Store().UpsertVehicles(ctx, vehicles); err != nil {
		return err
	}
	res.Count = len(vehicles)
	return nil
}

// importCargo rejects rows whose vehicle is unknown or whose invoice and
// city are already active, then inserts the rest as manual records.
func (im *Importer) importCargo(ctx context.Context, t *table, res *Result) error {
	if err := t.require("NumeroCarga", "Cidade", "ValorCTE", "DataCTE", "COD_Veiculo"); err != nil {
		return err
	}
	vehicles, err := im.registry.Vehicles(ctx)
	if err != nil {
		return err
	}
	taken, err := im.activeKeys(ctx)
	if err != nil {
		return err
	}

	var inputs []registry.CargoInput
	for i, row := range t.rows {
		line := i + 2
		if blankRow(row) {
			continue
		}
		in := registry.CargoInput{
			InvoiceNumber: t.cell(row, "NumeroCarga"),
			City:          t.cell(row, "Cidade"),
			VehicleCode:   reconcile.VehicleKey(t.cell(row, "COD_Veiculo")),
		}
		if in.InvoiceNumber == "" || in.City == "" {
			res.lineError(line, "NumeroCarga and Cidade are required")
			continue
		}
		value, err := utils.ParseDecimal(t.cell(row, "ValorCTE"))
		if err != nil || value.IsNegative() {
			res.lineError(line, "invalid ValorCTE %q", t.cell(row, "ValorCTE"))
			continue
		}
		in.Value = value
		date, err := parseCellDate(t.cell(row, "DataCTE"))
		if err != nil {
			res.lineError(line, "DataCTE: %v", err)
			continue
		}
		in.InvoiceDate = date
		if _, ok := vehicles.Get(in.VehicleCode); !ok {
			res.lineError(line, "vehicle %q is not registered", in.VehicleCode)
			continue
		}
		key, err := reconcile.CargoKey(in.InvoiceNumber, in.City)
		if err != nil {
			res.lineError(line, "%v", err)
			continue
		}
		if prev, dup := taken[key]; dup {
			res.lineError(line, "invoice %s for %s %s", in.InvoiceNumber, in.City, prev)
			continue
		}
		taken[key] = fmt.Sprintf("already listed on line %d", line)
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return nil
	}
	records, err := im.registry.CreateCargo(ctx, inputs, models.OriginManual)
	if err != nil {
		return err
	}
	res.Count = len(records)
	return nil
}

// activeKeys maps every active cargo key to the reason a new row with the
// same key is refused.
func (im *Importer) activeKeys(ctx context.Context) (map[string]string, error) {
	active, err := im.registry.Store().ListActiveCargo(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(active))
	for _, c := range active {
		keys[c.SyncKey] = "is already registered"
	}
	return keys, nil
}

func (im *Importer) importFareParameters(ctx context.Context, t *table, res *Result) error {
	if err := t.require("Cidade", "TipoVeiculo", "ValorBase", "KM"); err != nil {
		return err
	}
	var params []models.FareParameter
	seen := map[string]int{}
	for i, row := range t.rows {
		line := i + 2
		if blankRow(row) {
			continue
		}
		p := models.FareParameter{
			City:        t.cell(row, "Cidade"),
			VehicleType: t.cell(row, "TipoVeiculo"),
		}
		base, err := utils.ParseDecimal(t.cell(row, "ValorBase"))
		if err != nil || base.IsNegative() {
			res.lineError(line, "invalid ValorBase %q", t.cell(row, "ValorBase"))
			continue
		}
		p.BaseValue = base
		if p.DistanceKm, err = parseInt(t.cell(row, "KM")); err != nil {
			res.lineError(line, "KM: %v", err)
			continue
		}
		if err := utils.ValidateStruct(p); err != nil {
			res.lineError(line, "%v", utils.ProcessValidationErrors(err))
			continue
		}
		key := strings.ToLower(p.City + "\x1f" + p.VehicleType)
		if first, dup := seen[key]; dup {
			res.lineError(line, "%s / %s already listed on line %d", p.City, p.VehicleType, first)
			continue
		}
		seen[key] = line
		params = append(params, p)
	}
	if len(params) == 0 {
		return nil
	}
	if err := im.registry.Store().UpsertFareParameters(ctx, params); err != nil {
		return err
	}
	res.Count = len(params)
	return nil
}

func (im *Importer) importFeeParameters(ctx context.Context, t *table, res *Result) error {
	if err := t.require("Cidade"); err != nil {
		return err
	}
	columns := []string{"Pedagio", "Balsa", "Ambiental", "Chapa", "Outras"}

	var params []models.FeeParameter
	seen := map[string]int{}
rows:
	for i, row := range t.rows {
		line := i + 2
		if blankRow(row) {
			continue
		}
		values := make([]decimal.Decimal, len(columns))
		for j, col := range columns {
			raw := t.cell(row, col)
			if raw == "" {
				values[j] = decimal.Zero
				continue
			}
			d, err := utils.ParseDecimal(raw)
			if err != nil || d.IsNegative() {
				res.lineError(line, "invalid %s %q", col, raw)
				continue rows
			}
			values[j] = d
		}
		p := models.FeeParameter{
			City:          t.cell(row, "Cidade"),
			Toll:          values[0],
			Ferry:         values[1],
			Environmental: values[2],
			Loader:        values[3],
			Other:         values[4],
		}
		if err := utils.ValidateStruct(p); err != nil {
			res.lineError(line, "%v", utils.ProcessValidationErrors(err))
			continue
		}
		key := strings.ToLower(p.City)
		if first, dup := seen[key]; dup {
			res.lineError(line, "%s already listed on line %d", p.City, first)
			continue
		}
		seen[key] = line
		params = append(params, p)
	}
	if len(params) == 0 {
		return nil
	}
	if err := im.registry.Store().UpsertFeeParameters(ctx, params); err != nil {
		return err
	}
	res.Count = len(params)
	return nil
}
