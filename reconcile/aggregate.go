package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ERPCargoLine is one raw invoice row read from the ERP. An invoice split into
// several lines for the same city shows up as several rows.
type ERPCargoLine struct {
	InvoiceNumber string          `json:"invoice_number"`
	City          string          `json:"city"`
	Value         decimal.Decimal `json:"value"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	VehicleCode   string          `json:"vehicle_code"`
	CargoNumber   string          `json:"cargo_number,omitempty"`
}

// CargoCandidate is one aggregated ERP invoice, enriched with the vehicle type
// and default distance once Enrich has run.
type CargoCandidate struct {
	Key           string          `json:"key"`
	InvoiceNumber string          `json:"invoice_number" validate:"required,max=60"`
	City          string          `json:"city" validate:"required,max=120"`
	Value         decimal.Decimal `json:"value"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	VehicleCode   string          `json:"vehicle_code" validate:"max=50"`
	VehicleType   string          `json:"vehicle_type"`
	DistanceKm    int             `json:"distance_km" validate:"gte=0"`
	LineCount     int             `json:"line_count"`
}

// SplitIncomplete separates lines without an invoice number or a city. Such a
// line can never be stored, so it is reported and left out of the delta.
func SplitIncomplete(lines []ERPCargoLine) (complete, incomplete []ERPCargoLine) {
	complete = make([]ERPCargoLine, 0, len(lines))
	incomplete = []ERPCargoLine{}
	for _, line := range lines {
		if strings.TrimSpace(line.InvoiceNumber) == "" || strings.TrimSpace(line.City) == "" {
			incomplete = append(incomplete, line)
			continue
		}
		complete = append(complete, line)
	}
	return complete, incomplete
}

// Aggregate groups lines by CargoKey and sums their values. Vehicle code, city
// spelling and date come from the last line of each group. Groups are returned
// in order of first appearance.
func Aggregate(lines []ERPCargoLine) ([]CargoCandidate, error) {
	out := make([]CargoCandidate, 0, len(lines))
	index := make(map[string]int, len(lines))

	for _, line := range lines {
		key, err := CargoKey(line.InvoiceNumber, line.City)
		if err != nil {
			return nil, err
		}
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, CargoCandidate{Key: key, Value: decimal.Zero})
			i = len(out) - 1
		}
		c := &out[i]
		c.InvoiceNumber = strings.TrimSpace(line.InvoiceNumber)
		c.City = strings.TrimSpace(line.City)
		c.Value = c.Value.Add(line.Value)
		c.InvoiceDate = line.InvoiceDate
		c.VehicleCode = VehicleKey(line.VehicleCode)
		c.LineCount++
	}
	return out, nil
}
