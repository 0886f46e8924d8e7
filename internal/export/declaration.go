// Package export turns a company and a computed fleet into the fixed
// declaration document accepted by the tax authority. Element names and
// order follow the dmv2025 form schema; every field is always emitted,
// empty when absent, so the document stays schema-stable.
package export

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
)

// ErrValidation marks inputs the exporter refuses to serialize.
var ErrValidation = errors.New("validation error")

const nameLineWidth = 40

// Declaration is an immutable snapshot built at export time.
type Declaration struct {
	XMLName xml.Name `xml:"dokument"`
	Header  Header   `xml:"hlavicka"`
	Body    Body     `xml:"telo"`

	taxID   string
	taxYear int
}

type Header struct {
	NaturalPerson string      `xml:"fo"`
	LegalPerson   string      `xml:"po"`
	Foreign       string      `xml:"zahranicna"`
	TaxID         string      `xml:"dic"`
	Type          TypeMarkers `xml:"typDP"`
	Period        Period      `xml:"zdanovacieObdobie"`
	CompanyName   CompanyName `xml:"poObchodneMeno"`
	Seat          Seat        `xml:"sidlo"`
}

type TypeMarkers struct {
	Ordinary   string `xml:"rdp"`
	Corrective string `xml:"odp"`
	Amended    string `xml:"ddp"`
}

type Period struct {
	From string `xml:"od"`
	To   string `xml:"do"`
}

// CompanyName always carries exactly four lines on the form.
type CompanyName struct {
	Lines []string `xml:"riadok"`
}

type Seat struct {
	Street       string `xml:"ulica"`
	Number       string `xml:"cislo"`
	PostalCode   string `xml:"psc"`
	Municipality string `xml:"obec"`
	Country      string `xml:"stat"`
}

type Body struct {
	VehicleCount string `xml:"r35"`
	TotalTax     string `xml:"r36"`
	TaxDue       string `xml:"r38"`
	Pages        []Page `xml:"strana3"`
}

// Page holds two vehicle columns, mirroring the paper form layout.
type Page struct {
	Marker PageMarker `xml:"oznacenie"`
	Left   Column     `xml:"stlpec1"`
	Right  Column     `xml:"stlpec2"`
}

type PageMarker struct {
	Current string `xml:"aktualna"`
	Total   string `xml:"celkovo"`
}

type Column struct {
	FirstRegistration string `xml:"r01"`
	TaxStart          string `xml:"r02vzniku"`
	Category          string `xml:"r03Kategoria"`
	Plate             string `xml:"r06-EVC"`
	Displacement      string `xml:"r07-ObjemValcov"`
	EnginePower       string `xml:"r08-VykonMotora"`
	Mass              string `xml:"r09Hmotnost"`
	BaseRate          string `xml:"r13sadzba"`
	AdjustedRate      string `xml:"r15rocnaSadzba_1"`
	EcoDrive          string `xml:"r16hybrid"`
	CombinedTransport string `xml:"r18KombiDoprava"`
	FinalRate         string `xml:"r19sadzba1"`
	MonthsHeld        string `xml:"r20aPocMesS1"`
	Tax               string `xml:"r21dan1"`
	TaxTotal          string `xml:"r22"`
}

// Build assembles a declaration snapshot from a company and a computed
// fleet. It refuses to produce a document for an empty tax id or an empty
// fleet; nothing is emitted on failure.
func Build(company dmv.Company, vehicles []dmv.Vehicle, taxYear int) (*Declaration, error) {
	if company.TaxID == "" {
		return nil, fmt.Errorf("%w: tax id is required", ErrValidation)
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("%w: fleet is empty", ErrValidation)
	}

	total := decimal.Zero
	for _, v := range vehicles {
		total = total.Add(v.Tax)
	}

	d := &Declaration{
		Header: Header{
			NaturalPerson: "0",
			LegalPerson:   "1",
			Foreign:       "0",
			TaxID:         company.TaxID,
			Type:          TypeMarkers{Ordinary: "1", Corrective: "0", Amended: "0"},
			Period: Period{
				From: fmt.Sprintf("1.1.%d", taxYear),
				To:   fmt.Sprintf("31.12.%d", taxYear),
			},
			CompanyName: CompanyName{Lines: splitNameLines(company.Name)},
			Seat: Seat{
				Street:       company.Seat.Street,
				Number:       company.Seat.Number,
				PostalCode:   company.Seat.PostalCode,
				Municipality: company.Seat.Municipality,
				Country:      company.Seat.Country,
			},
		},
		Body: Body{
			VehicleCount: strconv.Itoa(len(vehicles)),
			TotalTax:     moneyText(total),
			TaxDue:       moneyText(total),
			Pages:        buildPages(vehicles),
		},
		taxID:   company.TaxID,
		taxYear: taxYear,
	}
	return d, nil
}

// Filename is the deterministic output name for this declaration.
func (d *Declaration) Filename() string {
	return fmt.Sprintf("dmv_%s_%d.xml", d.taxID, d.taxYear)
}

// Bytes serializes the declaration with the XML prolog. Reserved characters
// in free-text fields are escaped by the encoder.
func (d *Declaration) Bytes() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

func buildPages(vehicles []dmv.Vehicle) []Page {
	pageCount := (len(vehicles) + 1) / 2
	pages := make([]Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		page := Page{
			Marker: PageMarker{
				Current: strconv.Itoa(i + 1),
				Total:   strconv.Itoa(pageCount),
			},
			Left:  vehicleColumn(vehicleAt(vehicles, 2*i)),
			Right: vehicleColumn(vehicleAt(vehicles, 2*i+1)),
		}
		pages = append(pages, page)
	}
	return pages
}

func vehicleAt(vehicles []dmv.Vehicle, i int) dmv.Vehicle {
	if i < len(vehicles) {
		return vehicles[i]
	}
	// Odd fleet sizes leave the last right-hand column blank.
	return dmv.Vehicle{}
}

func vehicleColumn(v dmv.Vehicle) Column {
	return Column{
		FirstRegistration: v.FirstRegistration,
		TaxStart:          v.TaxStart,
		Category:          string(v.Category),
		Plate:             v.Plate,
		Displacement:      numText(v.DisplacementCCM),
		EnginePower:       numText(v.EnginePowerKW),
		Mass:              numText(v.MassKG),
		BaseRate:          moneyText(v.BaseRate),
		AdjustedRate:      moneyText(v.AdjustedRate),
		EcoDrive:          boolText(v.EcoDrive),
		CombinedTransport: boolText(v.CombinedTransport),
		FinalRate:         moneyText(v.AdjustedRate),
		MonthsHeld:        intText(v.MonthsHeld),
		Tax:               moneyText(v.Tax),
		TaxTotal:          moneyText(v.Tax),
	}
}

// splitNameLines breaks a company name into the four fixed-width lines the
// form reserves for it.
func splitNameLines(name string) []string {
	lines := make([]string, 4)
	runes := []rune(name)
	for i := 0; i < 4; i++ {
		start := i * nameLineWidth
		if start >= len(runes) {
			break
		}
		end := start + nameLineWidth
		if end > len(runes) {
			end = len(runes)
		}
		lines[i] = string(runes[start:end])
	}
	return lines
}

// Zero numeric values are emitted as empty elements, matching the form.
func moneyText(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func numText(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func intText(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
