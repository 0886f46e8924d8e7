package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
)

func testCompany() dmv.Company {
	return dmv.Company{
		TaxID: "2020123456",
		Name:  "Demo s.r.o.",
		Seat: dmv.Address{
			Street:       "Hlavná",
			Number:       "1",
			PostalCode:   "81101",
			Municipality: "Bratislava",
			Country:      "Slovenská republika",
		},
	}
}

func taxedVehicle(plate, tax string) dmv.Vehicle {
	return dmv.Vehicle{
		Plate:        plate,
		Category:     dmv.CategoryM1,
		MonthsHeld:   12,
		BaseRate:     decimal.NewFromInt(115),
		AdjustedRate: decimal.RequireFromString(tax),
		Tax:          decimal.RequireFromString(tax),
	}
}

func TestBuildRejectsEmptyTaxID(t *testing.T) {
	company := testCompany()
	company.TaxID = ""
	decl, err := Build(company, []dmv.Vehicle{taxedVehicle("BA123AB", "138.00")}, 2024)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if decl != nil {
		t.Fatalf("no document may be produced on validation failure")
	}
}

func TestBuildRejectsEmptyFleet(t *testing.T) {
	decl, err := Build(testCompany(), nil, 2024)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if decl != nil {
		t.Fatalf("no document may be produced on validation failure")
	}
}

func TestDeclarationFilename(t *testing.T) {
	decl, err := Build(testCompany(), []dmv.Vehicle{taxedVehicle("BA123AB", "138.00")}, 2024)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := decl.Filename(); got != "dmv_2020123456_2024.xml" {
		t.Fatalf("filename = %q", got)
	}
}

func TestDeclarationDocumentShape(t *testing.T) {
	vehicles := []dmv.Vehicle{
		taxedVehicle("BA123AB", "138.00"),
		taxedVehicle("BA456CD", "148.00"),
		taxedVehicle("BA789EF", "50.00"),
	}
	decl, err := Build(testCompany(), vehicles, 2024)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := decl.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	doc := string(data)

	for _, want := range []string{
		"<fo>0</fo>",
		"<po>1</po>",
		"<rdp>1</rdp>",
		"<dic>2020123456</dic>",
		"<od>1.1.2024</od>",
		"<do>31.12.2024</do>",
		"<riadok>Demo s.r.o.</riadok>",
		"<obec>Bratislava</obec>",
		"<r35>3</r35>",
		"<r36>336.00</r36>",
		"<r38>336.00</r38>",
		"<r06-EVC>BA123AB</r06-EVC>",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %s:\n%s", want, doc)
		}
	}

	// Three vehicles fill two pages; the last right-hand column stays blank.
	if got := strings.Count(doc, "<strana3>"); got != 2 {
		t.Fatalf("page count = %d, want 2", got)
	}
	if !strings.Contains(doc, "<celkovo>2</celkovo>") {
		t.Fatalf("missing total page marker:\n%s", doc)
	}
	if !strings.Contains(doc, "<r06-EVC></r06-EVC>") {
		t.Fatalf("blank column must still emit empty elements:\n%s", doc)
	}

	// The total appears under both fixed tags identically.
	if strings.Count(doc, ">336.00<") != 2 {
		t.Fatalf("total tax must appear under exactly two tags:\n%s", doc)
	}
}

func TestDeclarationEscapesFreeText(t *testing.T) {
	company := testCompany()
	company.Name = "Fero & Syn <s.r.o.>"
	company.Seat.Street = `Dlhá "cesta"`

	decl, err := Build(company, []dmv.Vehicle{taxedVehicle("BA123AB", "138.00")}, 2024)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := decl.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	doc := string(data)

	if !strings.Contains(doc, "Fero &amp; Syn &lt;s.r.o.&gt;") {
		t.Fatalf("reserved characters not escaped:\n%s", doc)
	}
	if strings.Contains(doc, "<s.r.o.>") {
		t.Fatalf("raw markup leaked into the document:\n%s", doc)
	}
}

func TestEmptyAddressFieldsStillEmitted(t *testing.T) {
	company := testCompany()
	company.Seat = dmv.Address{}

	decl, err := Build(company, []dmv.Vehicle{taxedVehicle("BA123AB", "138.00")}, 2024)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := decl.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	doc := string(data)

	for _, want := range []string{"<ulica></ulica>", "<cislo></cislo>", "<psc></psc>", "<obec></obec>"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("absent address field must emit an empty element %s:\n%s", want, doc)
		}
	}
}

func TestCompanyNameSplitsIntoFourLines(t *testing.T) {
	company := testCompany()
	company.Name = strings.Repeat("A", 50)

	decl, err := Build(company, []dmv.Vehicle{taxedVehicle("BA123AB", "138.00")}, 2024)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lines := decl.Header.CompanyName.Lines
	if len(lines) != 4 {
		t.Fatalf("name lines = %d, want 4", len(lines))
	}
	if lines[0] != strings.Repeat("A", 40) || lines[1] != strings.Repeat("A", 10) {
		t.Fatalf("unexpected name split: %q / %q", lines[0], lines[1])
	}
	if lines[2] != "" || lines[3] != "" {
		t.Fatalf("unused name lines must stay empty")
	}
}
