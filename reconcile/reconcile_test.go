package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustKey(t *testing.T, invoice, city string) string {
	t.Helper()
	k, err := CargoKey(invoice, city)
	require.NoError(t, err)
	return k
}

func TestCargoKey(t *testing.T) {
	assert.Equal(t, mustKey(t, " 77890 ", "BH "), mustKey(t, "77890", "BH"))
	assert.NotEqual(t, mustKey(t, "A B", "C"), mustKey(t, "A", "B C"))
	assert.NotEqual(t, mustKey(t, "77890", "BH"), mustKey(t, "77890", "bh"))

	_, err := CargoKey("77\x1f890", "BH")
	var ve *utils.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestVehicleKey(t *testing.T) {
	assert.Equal(t, "TRUCK001", VehicleKey("  TRUCK001\t"))
	assert.Equal(t, "truck001", VehicleKey("truck001"))
}

func TestAggregate_SumsSplitInvoiceLines(t *testing.T) {
	lines := []ERPCargoLine{
		{InvoiceNumber: "N1", City: "BH", Value: dec("100.10"), InvoiceDate: day(20), VehicleCode: "TRUCK001"},
		{InvoiceNumber: "N2", City: "RJ", Value: dec("50.00"), InvoiceDate: day(21), VehicleCode: "TRUCK001"},
		{InvoiceNumber: "N1", City: "BH", Value: dec("0.20"), InvoiceDate: day(22), VehicleCode: "TRUCK003"},
		{InvoiceNumber: "N1", City: "RJ", Value: dec("7.00"), InvoiceDate: day(23), VehicleCode: "TRUCK001"},
	}

	got, err := Aggregate(lines)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "N1", got[0].InvoiceNumber)
	assert.Equal(t, "BH", got[0].City)
	assert.True(t, dec("100.30").Equal(got[0].Value), got[0].Value.String())
	assert.Equal(t, "TRUCK003", got[0].VehicleCode, "last line wins")
	assert.Equal(t, day(22), got[0].InvoiceDate)
	assert.Equal(t, 2, got[0].LineCount)

	assert.Equal(t, "N2", got[1].InvoiceNumber)
	assert.Equal(t, "RJ", got[2].City)
}

func TestAggregate_TotalIsPreserved(t *testing.T) {
	var lines []ERPCargoLine
	total := decimal.Zero
	for i := 0; i < 30; i++ {
		v := dec("0.10")
		lines = append(lines, ERPCargoLine{InvoiceNumber: []string{"A", "B", "C"}[i%3], City: "BH", Value: v, VehicleCode: "V1"})
		total = total.Add(v)
	}
	got, err := Aggregate(lines)
	require.NoError(t, err)
	require.Len(t, got, 3)

	sum := decimal.Zero
	for _, c := range got {
		sum = sum.Add(c.Value)
		assert.True(t, dec("1.00").Equal(c.Value))
	}
	assert.True(t, total.Equal(sum))
}

func TestAggregate_Empty(t *testing.T) {
	got, err := Aggregate(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSplitIncomplete(t *testing.T) {
	lines := []ERPCargoLine{
		{InvoiceNumber: "N1", City: "BH"},
		{InvoiceNumber: "N2", City: " "},
		{InvoiceNumber: "", City: "RJ"},
		{InvoiceNumber: "N3", City: "RJ"},
	}
	complete, incomplete := SplitIncomplete(lines)
	require.Len(t, complete, 2)
	assert.Equal(t, "N3", complete[1].InvoiceNumber)
	require.Len(t, incomplete, 2)
	assert.Equal(t, "N2", incomplete[0].InvoiceNumber)

	_, incomplete = SplitIncomplete(nil)
	assert.NotNil(t, incomplete)
}

func TestEnrich_DistanceFallbackOrder(t *testing.T) {
	vehicles := NewVehicleIndex([]models.Vehicle{
		{Code: "TRUCK001", Type: "Carreta", Active: true},
		{Code: "VAN001", Type: "VUC", Active: false},
	})
	fares := NewFareIndex([]models.FareParameter{
		{City: "Qualquer", VehicleType: "Carreta", DistanceKm: 0, BaseValue: dec("1500")},
		{City: "Qualquer", VehicleType: "VUC", DistanceKm: 80},
		{City: "BH", VehicleType: "Carreta", DistanceKm: 350},
	})

	got, err := Enrich([]CargoCandidate{
		{InvoiceNumber: "N1", City: "bh ", VehicleCode: "TRUCK001"},
		{InvoiceNumber: "N2", City: "Campinas", VehicleCode: "VAN001"},
		{InvoiceNumber: "N3", City: "Campinas", VehicleCode: "TRUCK001"},
	}, vehicles, fares)
	require.NoError(t, err)

	assert.Equal(t, 350, got[0].DistanceKm, "exact city, case-insensitive")
	assert.Equal(t, "Carreta", got[0].VehicleType)
	assert.Equal(t, 80, got[1].DistanceKm, "wildcard, inactive vehicle still registered")
	assert.Equal(t, 0, got[2].DistanceKm, "wildcard row with 0 km")

	none, err := Enrich([]CargoCandidate{{City: "BH", VehicleCode: "TRUCK001"}}, vehicles, NewFareIndex(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, none[0].DistanceKm)
}

func TestEnrich_MissingVehiclesBlockBatch(t *testing.T) {
	vehicles := NewVehicleIndex([]models.Vehicle{{Code: "V1", Type: "Truck"}})

	got, err := Enrich([]CargoCandidate{
		{InvoiceNumber: "N1", City: "BH", VehicleCode: "V1"},
		{InvoiceNumber: "N2", City: "BH", VehicleCode: "V2"},
		{InvoiceNumber: "N3", City: "RJ", VehicleCode: "V2"},
		{InvoiceNumber: "N4", City: "RJ", VehicleCode: "  "},
	}, vehicles, NewFareIndex(nil))
	assert.Nil(t, got)

	var mv *utils.MissingVehicleError
	require.True(t, errors.As(err, &mv))
	assert.Equal(t, []string{BlankVehicleCode, "V2"}, mv.Codes)
}

func TestDiffVehicles(t *testing.T) {
	local := []models.Vehicle{
		{Code: "TRUCK001", Plate: "ABC-1234", Type: "Truck"},
		{Code: "TRUCK002", Plate: "DEF-5678", Type: "Truck"},
	}
	erp := []models.Vehicle{
		{Code: "TRUCK001", Plate: "ABC-1234", Type: "Carreta"},
		{Code: "TRUCK002 ", Plate: "DEF-5678", Type: "Truck", DriverName: "outro"},
		{Code: "TRUCK003", Plate: "JKL-3456", Type: "Truck"},
		{Code: "TRUCK003", Plate: "JKL-3456", Type: "Carreta"},
		{Code: "", Plate: "ZZZ-0000"},
	}

	diff := DiffVehicles(erp, local)

	require.Len(t, diff.Conflicts, 1)
	assert.Equal(t, "TRUCK001", diff.Conflicts[0].Code)
	assert.Equal(t, "Truck", diff.Conflicts[0].Local.Type)
	assert.Equal(t, "Carreta", diff.Conflicts[0].ERP.Type)

	require.Len(t, diff.New, 1)
	assert.Equal(t, "TRUCK003", diff.New[0].Code)
	assert.Equal(t, "Carreta", diff.New[0].Type, "last duplicate wins")
}

func TestDiffCargo_Classification(t *testing.T) {
	reason := "duplicada"
	local := []models.CargoRecord{
		{ID: 1, SyncKey: mustKey(t, "N1", "BH"), Status: models.CargoStatusActive, Value: dec("1")},
		{ID: 2, SyncKey: mustKey(t, "N2", "BH"), Status: models.CargoStatusDeleted, DeletionReason: &reason},
		{ID: 3, SyncKey: mustKey(t, "N3", "BH"), Status: models.CargoStatusDeleted},
		{ID: 4, SyncKey: mustKey(t, "N3", "BH"), Status: models.CargoStatusActive},
	}
	cands := []CargoCandidate{
		{Key: mustKey(t, "N1", "BH"), InvoiceNumber: "N1", City: "BH", Value: dec("999")},
		{Key: mustKey(t, "N2", "BH"), InvoiceNumber: "N2", City: "BH"},
		{Key: mustKey(t, "N3", "BH"), InvoiceNumber: "N3", City: "BH"},
		{Key: mustKey(t, "N4", "BH"), InvoiceNumber: "N4", City: "BH"},
	}

	diff := DiffCargo(cands, local)

	require.Len(t, diff.New, 1)
	assert.Equal(t, "N4", diff.New[0].InvoiceNumber)

	require.Len(t, diff.Reactivations, 1, "a key that is also active is never reactivatable")
	assert.Equal(t, uint(2), diff.Reactivations[0].LocalId)
	assert.Equal(t, "duplicada", diff.Reactivations[0].PreviousReason)
}

func TestPlanVehicleBatch(t *testing.T) {
	conflicts := []VehicleConflict{
		{Code: "TRUCK001", ERP: models.Vehicle{Code: "TRUCK001", Type: "Carreta"}, Decision: VehicleDecisionOverwrite},
		{Code: "TRUCK002", ERP: models.Vehicle{Code: "TRUCK002", Type: "VUC"}, Decision: VehicleDecisionSkip},
	}
	batch, err := PlanVehicleBatch([]models.Vehicle{{Code: " TRUCK003 "}}, conflicts)
	require.NoError(t, err)
	require.Len(t, batch.Insert, 1)
	assert.Equal(t, "TRUCK003", batch.Insert[0].Code)
	require.Len(t, batch.Overwrite, 1)
	assert.Equal(t, "Carreta", batch.Overwrite[0].Type)

	conflicts[1].Decision = ""
	_, err = PlanVehicleBatch(nil, conflicts)
	var cu *utils.ConflictUnresolvedError
	require.True(t, errors.As(err, &cu))
	assert.Equal(t, "TRUCK002", cu.Key)
}

func TestPlanCargoBatch(t *testing.T) {
	newCargo := []CargoCandidate{{InvoiceNumber: "N1", City: "BH", Value: dec("10.005"), InvoiceDate: day(20), VehicleCode: "TRUCK001", DistanceKm: 350}}
	react := []ReactivationCandidate{
		{Candidate: CargoCandidate{InvoiceNumber: "N2", City: "RJ"}, Decision: CargoDecisionReactivate},
		{Candidate: CargoCandidate{InvoiceNumber: "N3", City: "RJ"}, Decision: CargoDecisionIgnore},
	}

	batch, err := PlanCargoBatch(newCargo, react)
	require.NoError(t, err)
	require.Len(t, batch.Insert, 1)
	assert.Equal(t, mustKey(t, "N1", "BH"), batch.Insert[0].SyncKey)
	assert.Equal(t, models.OriginERP, batch.Insert[0].Origin)
	assert.Equal(t, 350, batch.Insert[0].DistanceKm)
	require.Len(t, batch.Reactivate, 1)
	assert.Equal(t, mustKey(t, "N2", "RJ"), batch.Reactivate[0].SyncKey)

	react[1].Decision = "maybe"
	_, err = PlanCargoBatch(newCargo, react)
	var cu *utils.ConflictUnresolvedError
	require.True(t, errors.As(err, &cu))

	_, err = PlanCargoBatch(append(newCargo, newCargo[0]), nil)
	var ve *utils.ValidationError
	require.True(t, errors.As(err, &ve))
}
