package fare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frete360/frete_backend/appctx"
	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/testutil"
	"github.com/frete360/frete_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fareParams() []models.FareParameter {
	return []models.FareParameter{
		{City: "Belo Horizonte", VehicleType: "Carreta", BaseValue: dec("2200"), DistanceKm: 350},
		{City: "Rio de Janeiro", VehicleType: "Carreta", BaseValue: dec("1800"), DistanceKm: 450},
		{City: models.WildcardCity, VehicleType: "Truck", BaseValue: dec("900"), DistanceKm: 0},
	}
}

func feeParams() []models.FeeParameter {
	return []models.FeeParameter{
		{City: "Belo Horizonte", Toll: dec("50.50"), Loader: dec("100"), Other: dec("10")},
		{City: "Rio de Janeiro", Toll: dec("75"), Environmental: dec("20"), Loader: dec("150")},
	}
}

func cargo(city string, km int) models.CargoRecord {
	return models.CargoRecord{DestinationCity: city, DistanceKm: km, Status: models.CargoStatusActive}
}

func TestCalculate_FarthestCityAndSummedFees(t *testing.T) {
	calc, err := Calculate("Carreta",
		[]models.CargoRecord{cargo("Belo Horizonte", 350), cargo("Rio de Janeiro", 450)},
		reconcile.NewFareIndex(fareParams()), feeParams())
	require.NoError(t, err)

	assert.Equal(t, "Rio de Janeiro", calc.BaseCity)
	assert.Equal(t, 450, calc.BaseKm)
	assert.True(t, dec("1800").Equal(calc.BaseValue))
	assert.True(t, dec("125.50").Equal(calc.Toll))
	assert.True(t, dec("20").Equal(calc.Environmental))
	assert.True(t, dec("250").Equal(calc.Loader))
	assert.True(t, dec("10").Equal(calc.Other))
	assert.True(t, decimal.Zero.Equal(calc.Ferry))
	assert.Equal(t, "2205.5", calc.Total.String())
}

func TestCalculate_FeesCountOncePerCity(t *testing.T) {
	calc, err := Calculate("Carreta",
		[]models.CargoRecord{cargo("Belo Horizonte", 350), cargo("belo horizonte ", 350)},
		reconcile.NewFareIndex(fareParams()), feeParams())
	require.NoError(t, err)

	assert.Equal(t, "Belo Horizonte", calc.BaseCity, "ties keep the first record")
	assert.True(t, dec("50.50").Equal(calc.Toll))
	assert.Equal(t, []string{"Belo Horizonte"}, calc.Cities)
	assert.Equal(t, "2360.5", calc.Total.String())
}

func TestCalculate_WildcardAndMissingFare(t *testing.T) {
	fares := reconcile.NewFareIndex(fareParams())

	calc, err := Calculate("Truck", []models.CargoRecord{cargo("Curitiba", 0)}, fares, nil)
	require.NoError(t, err)
	assert.True(t, dec("900").Equal(calc.BaseValue))

	calc, err = Calculate("Van", []models.CargoRecord{cargo("Curitiba", 0)}, fares, nil)
	require.NoError(t, err)
	assert.True(t, calc.Total.IsZero())
}

func TestCalculate_RequiresCargo(t *testing.T) {
	_, err := Calculate("Carreta", nil, reconcile.NewFareIndex(nil), nil)
	var ve *utils.ValidationError
	assert.True(t, errors.As(err, &ve))
}

type fixture struct {
	store  *models.Store
	svc    *Service
	cargos []models.CargoRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := models.NewStore(testutil.OpenDB(t))
	ctx := context.Background()

	require.NoError(t, store.CreateVehicle(ctx, &models.Vehicle{Code: "CAR01", Plate: "ABC1D23", Type: "Carreta", Active: true}))
	require.NoError(t, store.UpsertFareParameters(ctx, fareParams()))
	require.NoError(t, store.UpsertFeeParameters(ctx, feeParams()))

	f := &fixture{store: store, svc: NewService(store)}
	for _, c := range []struct {
		inv, city string
		km        int
	}{{"1001", "Belo Horizonte", 350}, {"1002", "Rio de Janeiro", 450}} {
		key, err := reconcile.CargoKey(c.inv, c.city)
		require.NoError(t, err)
		f.cargos = append(f.cargos, models.CargoRecord{
			InvoiceNumber:   c.inv,
			DestinationCity: c.city,
			SyncKey:         key,
			Value:           dec("1000"),
			InvoiceDate:     time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
			DistanceKm:      c.km,
			VehicleCode:     "CAR01",
			Origin:          models.OriginManual,
		})
	}
	require.NoError(t, store.CreateCargo(ctx, f.cargos))
	return f
}

func (f *fixture) ids() []uint {
	var ids []uint
	for _, c := range f.cargos {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestRecord_StoresServerSideTotalAndSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeyUsername, "ana")

	entry, err := f.svc.Record(ctx, RecordRequest{
		QuoteRequest: QuoteRequest{VehicleCode: "CAR01", CargoIds: f.ids()},
		FreightDate:  "2024-05-21",
	})
	require.NoError(t, err)
	assert.Equal(t, "2205.5", entry.Total.String())
	assert.Equal(t, "ana", entry.Username)
	assert.Len(t, entry.Cargos, 2)

	listed, err := f.svc.List(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Rio de Janeiro", listed[0].BaseCity)
	assert.Len(t, listed[0].Cargos, 2)

	_, err = f.svc.Delete(context.Background(), entry.ID, "  ")
	var ve *utils.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = f.svc.Delete(context.Background(), entry.ID, "lançamento duplicado")
	require.NoError(t, err)
	listed, err = f.svc.List(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestQuote_RejectsDeletedCargo(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.SoftDeleteCargo(context.Background(), f.cargos[0].ID, "nota cancelada")
	require.NoError(t, err)

	_, err = f.svc.Quote(context.Background(), QuoteRequest{VehicleCode: "CAR01", CargoIds: f.ids()})
	var ve *utils.ValidationError
	assert.True(t, errors.As(err, &ve), "%v", err)
}

func TestQuote_UnknownVehicle(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Quote(context.Background(), QuoteRequest{VehicleCode: "NOPE", CargoIds: f.ids()})
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestCalculateHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	r := gin.New()
	r.POST("/api/fretes/calcular", CalculateHandler(f.svc))

	body, _ := json.Marshal(QuoteRequest{VehicleCode: "CAR01", CargoIds: f.ids()})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/fretes/calcular", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Calculation struct {
			BaseCity string `json:"base_city"`
			Total    string `json:"total"`
		} `json:"calculation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Rio de Janeiro", out.Calculation.BaseCity)
	assert.Equal(t, "2205.5", out.Calculation.Total)

	body, _ = json.Marshal(QuoteRequest{VehicleCode: "CAR01"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/fretes/calcular", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
