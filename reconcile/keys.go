// Package reconcile compares ERP snapshots with the local dataset and turns
// operator decisions into write batches. It performs no I/O.
package reconcile

import (
	"strings"

	"github.com/frete360/frete_backend/utils"
)

// keySeparator cannot appear in invoice numbers or city names, so
// ("A B", "C") and ("A", "B C") never collide.
const keySeparator = "\x1f"

// VehicleKey is the ERP vehicle code with surrounding blanks removed. Case is kept.
func VehicleKey(code string) string {
	return strings.TrimSpace(code)
}

// CargoKey identifies a cargo record by invoice number and destination city.
func CargoKey(invoiceNumber, city string) (string, error) {
	if strings.Contains(invoiceNumber, keySeparator) {
		return "", utils.NewValidationError("invoice_number", "invoice number %q contains a control character", invoiceNumber)
	}
	if strings.Contains(city, keySeparator) {
		return "", utils.NewValidationError("city", "city %q contains a control character", city)
	}
	return strings.TrimSpace(invoiceNumber) + keySeparator + strings.TrimSpace(city), nil
}

// parameterKey matches fare parameters the way the MySQL collation does:
// trimmed and case-insensitive.
func parameterKey(city, vehicleType string) string {
	return strings.ToLower(strings.TrimSpace(city)) + keySeparator + strings.ToLower(strings.TrimSpace(vehicleType))
}
