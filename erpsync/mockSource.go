package erpsync

import (
	"context"
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/shopspring/decimal"
)

// MockSource serves a fixed ERP snapshot. It backs APP_MODE=MOCK and tests.
type MockSource struct {
	Vehicles []models.Vehicle
	Lines    []reconcile.ERPCargoLine
	// Err, when set, is returned by every call.
	Err error
}

// NewMockSource returns the demo dataset used for offline development.
func NewMockSource() *MockSource {
	date := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	return &MockSource{
		Vehicles: []models.Vehicle{
			{Code: "TRUCK001", Plate: "ABC-1234", Type: "Carreta", DriverName: "João da Silva", CapacityKg: 25000, Active: true},
			{Code: "TRUCK002", Plate: "DEF-5678", Type: "Truck", DriverName: "Maria Oliveira", CapacityKg: 12000, Active: true},
			{Code: "VAN001", Plate: "GHI-9012", Type: "VUC", DriverName: "Pedro Martins", CapacityKg: 3000, Active: false},
			{Code: "TRUCK003", Plate: "JKL-3456", Type: "Carreta", DriverName: "Carlos Pereira", CapacityKg: 27000, Active: true},
		},
		Lines: []reconcile.ERPCargoLine{
			{InvoiceNumber: "77890", CargoNumber: "ERP-77890", City: "Belo Horizonte", Value: decimal.RequireFromString("1200.50"), InvoiceDate: date(20), VehicleCode: "TRUCK001"},
			{InvoiceNumber: "77891", CargoNumber: "ERP-77891", City: "Rio de Janeiro", Value: decimal.RequireFromString("1850.00"), InvoiceDate: date(21), VehicleCode: "TRUCK001"},
			{InvoiceNumber: "77892", CargoNumber: "ERP-77892", City: "Curitiba", Value: decimal.RequireFromString("2200.75"), InvoiceDate: date(22), VehicleCode: "TRUCK003"},
		},
	}
}

func (m *MockSource) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]models.Vehicle(nil), m.Vehicles...), nil
}

func (m *MockSource) FetchCargoLines(ctx context.Context, start, end time.Time) ([]reconcile.ERPCargoLine, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]reconcile.ERPCargoLine, 0, len(m.Lines))
	for _, l := range m.Lines {
		if l.InvoiceDate.Before(start) || l.InvoiceDate.After(end) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
