package reconcile

import (
	"sort"
	"strings"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/utils"
)

// BlankVehicleCode stands in for an empty code in MissingVehicleError.
const BlankVehicleCode = "(blank)"

// FareIndex looks up fare parameters by (city, vehicle type) with the
// Qualquer wildcard as fallback.
type FareIndex struct {
	byKey map[string]models.FareParameter
}

func NewFareIndex(params []models.FareParameter) *FareIndex {
	ix := &FareIndex{byKey: make(map[string]models.FareParameter, len(params))}
	for _, p := range params {
		ix.byKey[parameterKey(p.City, p.VehicleType)] = p
	}
	return ix
}

// Lookup tries the exact city first, then the wildcard city.
func (ix *FareIndex) Lookup(city, vehicleType string) (models.FareParameter, bool) {
	if p, ok := ix.byKey[parameterKey(city, vehicleType)]; ok {
		return p, true
	}
	p, ok := ix.byKey[parameterKey(models.WildcardCity, vehicleType)]
	return p, ok
}

// Distance is the default km for a destination, 0 when no parameter applies.
func (ix *FareIndex) Distance(city, vehicleType string) int {
	if p, ok := ix.Lookup(city, vehicleType); ok {
		return p.DistanceKm
	}
	return 0
}

// VehicleIndex resolves registered vehicles by code. Inactive vehicles count
// as registered.
type VehicleIndex struct {
	byCode map[string]models.Vehicle
}

func NewVehicleIndex(vehicles []models.Vehicle) *VehicleIndex {
	ix := &VehicleIndex{byCode: make(map[string]models.Vehicle, len(vehicles))}
	for _, v := range vehicles {
		ix.byCode[VehicleKey(v.Code)] = v
	}
	return ix
}

func (ix *VehicleIndex) Get(code string) (models.Vehicle, bool) {
	v, ok := ix.byCode[VehicleKey(code)]
	return v, ok
}

// ByPlate finds a vehicle by plate ignoring punctuation and case.
func (ix *VehicleIndex) ByPlate(plate string) (models.Vehicle, bool) {
	want := CleanPlate(plate)
	if want == "" {
		return models.Vehicle{}, false
	}
	for _, v := range ix.byCode {
		if CleanPlate(v.Plate) == want {
			return v, true
		}
	}
	return models.Vehicle{}, false
}

// CleanPlate keeps letters and digits, upper-cased: "abc-1234" -> "ABC1234".
func CleanPlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Enrich fills VehicleType and DistanceKm of every candidate. If any candidate
// references an unregistered vehicle, nothing is enriched and a
// *utils.MissingVehicleError with the distinct sorted codes is returned.
func Enrich(cands []CargoCandidate, vehicles *VehicleIndex, fares *FareIndex) ([]CargoCandidate, error) {
	missing := map[string]struct{}{}
	for _, c := range cands {
		if _, ok := vehicles.Get(c.VehicleCode); !ok {
			code := VehicleKey(c.VehicleCode)
			if code == "" {
				code = BlankVehicleCode
			}
			missing[code] = struct{}{}
		}
	}
	if len(missing) > 0 {
		codes := make([]string, 0, len(missing))
		for code := range missing {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		return nil, &utils.MissingVehicleError{Codes: codes}
	}

	out := make([]CargoCandidate, len(cands))
	for i, c := range cands {
		v, _ := vehicles.Get(c.VehicleCode)
		c.VehicleType = v.Type
		c.DistanceKm = fares.Distance(c.City, v.Type)
		out[i] = c
	}
	return out, nil
}
