package dmv

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Category is the statutory vehicle class that selects the rate table.
type Category string

const (
	CategoryL  Category = "L"
	CategoryM1 Category = "M1"
	CategoryN1 Category = "N1"
	CategoryO1 Category = "O1"
	CategoryO2 Category = "O2"
	CategoryO3 Category = "O3"
	CategoryO4 Category = "O4"
)

// IsTrailer reports whether the category belongs to the O1..O4 trailer class.
// Trailers are rated by a direct table and never receive an age adjustment.
func (c Category) IsTrailer() bool {
	return strings.HasPrefix(string(c), "O")
}

// UsesDisplacement reports whether the base rate is taken from the
// engine-displacement table.
func (c Category) UsesDisplacement() bool {
	return c == CategoryM1 || c == CategoryL || strings.HasPrefix(string(c), "L")
}

// Vehicle is one fleet row. Editable fields come from the caller; the
// fields after ComputedAtYear are derived and only written by a recompute.
type Vehicle struct {
	Plate             string   `json:"plate"`
	Category          Category `json:"category"`
	DisplacementCCM   float64  `json:"displacement_ccm,omitempty"`
	EnginePowerKW     float64  `json:"engine_power_kw,omitempty"`
	MassKG            float64  `json:"mass_kg,omitempty"`
	FirstRegistration string   `json:"first_registration,omitempty"`
	TaxStart          string   `json:"tax_start,omitempty"`
	MonthsHeld        int      `json:"months_held,omitempty"`
	EcoDrive          bool     `json:"eco_drive,omitempty"`
	CombinedTransport bool     `json:"combined_transport,omitempty"`

	// Derived fields. Invalid until a recompute has run.
	ComputedAtYear int             `json:"computed_at_year,omitempty"`
	BaseRate       decimal.Decimal `json:"base_rate"`
	AgeMonths      int             `json:"age_months"`
	AdjustedRate   decimal.Decimal `json:"adjusted_rate"`
	Tax            decimal.Decimal `json:"tax"`
	UsedFallback   bool            `json:"used_fallback,omitempty"`
}

// Address of the company seat. All fields optional; the exporter emits
// empty elements for absent values.
type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Company identifies the legal entity in the declaration header.
type Company struct {
	TaxID     string  `json:"tax_id"`
	CompanyID string  `json:"company_id,omitempty"`
	Name      string  `json:"name"`
	Seat      Address `json:"seat"`
}

// FleetExtract is the shape an ingestion collaborator produces: a company
// guess plus the vehicles found in the source document.
type FleetExtract struct {
	Company  Company   `json:"company"`
	Vehicles []Vehicle `json:"vehicles"`
}

// FleetSource supplies an initial fleet extracted from a source document.
// How the extraction happens (PDF, OCR, manual entry) is not this module's
// concern; a failed extraction surfaces as an error with no vehicles.
type FleetSource interface {
	ExtractFleet(ctx context.Context) (FleetExtract, error)
}
