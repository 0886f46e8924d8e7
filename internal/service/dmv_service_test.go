package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
	"dmv-service/internal/registry"
)

func newTestService() *DMVService {
	reg := registry.NewStatic([]dmv.Company{
		{TaxID: "2020123456", CompanyID: "12345678", Name: "Demo s.r.o."},
	})
	return NewDMVService(NewSessionStore(time.Hour), reg, zerolog.Nop())
}

func passengerCar() dmv.Vehicle {
	return dmv.Vehicle{
		Plate:             "BA123AB",
		Category:          dmv.CategoryM1,
		DisplacementCCM:   1400,
		FirstRegistration: "15.3.2009",
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService()

	session := svc.CreateSession(2024)
	state, err := svc.FleetState(session.ID)
	if err != nil {
		t.Fatalf("FleetState: %v", err)
	}
	if state.TaxYear != 2024 || state.VehicleCount != 0 {
		t.Fatalf("fresh session state = %+v", state)
	}

	if _, err := svc.FleetState("no-such-session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateSessionDefaultsToPreviousYear(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(0)
	state, err := svc.FleetState(session.ID)
	if err != nil {
		t.Fatalf("FleetState: %v", err)
	}
	if want := time.Now().Year() - 1; state.TaxYear != want {
		t.Fatalf("tax year = %d, want %d", state.TaxYear, want)
	}
}

func TestAddVehicle(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)

	state, err := svc.AddVehicle(session.ID, passengerCar())
	if err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}
	if state.VehicleCount != 1 {
		t.Fatalf("vehicle count = %d", state.VehicleCount)
	}
	if !state.TotalTax.Equal(decimal.RequireFromString("138.00")) {
		t.Fatalf("total tax = %s", state.TotalTax)
	}
}

func TestAddVehicleValidation(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)

	cases := []struct {
		name string
		mut  func(v *dmv.Vehicle)
	}{
		{"missing plate", func(v *dmv.Vehicle) { v.Plate = "   " }},
		{"missing category", func(v *dmv.Vehicle) { v.Category = "" }},
		{"months over twelve", func(v *dmv.Vehicle) { v.MonthsHeld = 13 }},
		{"negative months", func(v *dmv.Vehicle) { v.MonthsHeld = -1 }},
	}
	for _, tc := range cases {
		v := passengerCar()
		tc.mut(&v)
		if _, err := svc.AddVehicle(session.ID, v); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}

	state, err := svc.FleetState(session.ID)
	if err != nil {
		t.Fatalf("FleetState: %v", err)
	}
	if state.VehicleCount != 0 {
		t.Fatalf("rejected vehicles must not land in the fleet, count = %d", state.VehicleCount)
	}
}

func TestUpdateAndRemoveVehicle(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)
	if _, err := svc.AddVehicle(session.ID, passengerCar()); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}

	eco := passengerCar()
	eco.EcoDrive = true
	state, err := svc.UpdateVehicle(session.ID, 0, eco)
	if err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}
	if !state.TotalTax.Equal(decimal.RequireFromString("69.00")) {
		t.Fatalf("total tax after update = %s", state.TotalTax)
	}

	if _, err := svc.UpdateVehicle(session.ID, 5, eco); !errors.Is(err, ErrValidation) {
		t.Fatalf("out-of-range update: err = %v, want ErrValidation", err)
	}

	state, err = svc.RemoveVehicle(session.ID, 0)
	if err != nil {
		t.Fatalf("RemoveVehicle: %v", err)
	}
	if state.VehicleCount != 0 || !state.TotalTax.IsZero() {
		t.Fatalf("state after remove = %+v", state)
	}
	if _, err := svc.RemoveVehicle(session.ID, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("remove from empty fleet: err = %v, want ErrValidation", err)
	}
}

func TestSetTaxYearRecomputes(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)
	if _, err := svc.AddVehicle(session.ID, passengerCar()); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}

	state, err := svc.SetTaxYear(session.ID, 2025)
	if err != nil {
		t.Fatalf("SetTaxYear: %v", err)
	}
	if !state.TotalTax.Equal(decimal.RequireFromString("172.50")) {
		t.Fatalf("total tax for 2025 = %s", state.TotalTax)
	}

	if _, err := svc.SetTaxYear(session.ID, 1999); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

type fakeFleetSource struct {
	extract dmv.FleetExtract
	err     error
}

func (f fakeFleetSource) ExtractFleet(context.Context) (dmv.FleetExtract, error) {
	return f.extract, f.err
}

func TestIngestFrom(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)
	if _, err := svc.AddVehicle(session.ID, passengerCar()); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}

	src := fakeFleetSource{extract: dmv.FleetExtract{
		Company: dmv.Company{TaxID: "2020999999", Name: "Ingested a.s."},
		Vehicles: []dmv.Vehicle{
			{Plate: "ZA111AA", Category: dmv.CategoryM1, DisplacementCCM: 999, FirstRegistration: "1.1.2020"},
			{Plate: "ZA222BB", Category: dmv.CategoryO3},
		},
	}}
	state, err := svc.IngestFrom(context.Background(), session.ID, src)
	if err != nil {
		t.Fatalf("IngestFrom: %v", err)
	}
	if state.VehicleCount != 2 {
		t.Fatalf("vehicle count after ingest = %d", state.VehicleCount)
	}
	if state.Company.Name != "Ingested a.s." {
		t.Fatalf("company after ingest = %+v", state.Company)
	}
	if state.Vehicles[0].Plate != "ZA111AA" {
		t.Fatalf("previous fleet must be replaced, got %+v", state.Vehicles)
	}
}

func TestIngestFromFailureLeavesFleetIntact(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)
	if _, err := svc.AddVehicle(session.ID, passengerCar()); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}

	src := fakeFleetSource{err: errors.New("scan unreadable")}
	if _, err := svc.IngestFrom(context.Background(), session.ID, src); err == nil ||
		!strings.Contains(err.Error(), "no vehicles produced") {
		t.Fatalf("err = %v", err)
	}

	state, err := svc.FleetState(session.ID)
	if err != nil {
		t.Fatalf("FleetState: %v", err)
	}
	if state.VehicleCount != 1 {
		t.Fatalf("fleet must survive a failed ingestion, count = %d", state.VehicleCount)
	}
}

func TestLookupCompany(t *testing.T) {
	svc := newTestService()

	company, err := svc.LookupCompany(context.Background(), "SK 2020123456")
	if err != nil {
		t.Fatalf("LookupCompany: %v", err)
	}
	if company.Name != "Demo s.r.o." {
		t.Fatalf("company = %+v", company)
	}

	if _, err := svc.LookupCompany(context.Background(), "9999999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.LookupCompany(context.Background(), "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestExport(t *testing.T) {
	svc := newTestService()
	session := svc.CreateSession(2024)

	// Empty fleet cannot be declared.
	if _, _, err := svc.Export(session.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	if _, err := svc.SetCompany(session.ID, dmv.Company{TaxID: "2020123456", Name: "Demo s.r.o."}); err != nil {
		t.Fatalf("SetCompany: %v", err)
	}
	if _, err := svc.AddVehicle(session.ID, passengerCar()); err != nil {
		t.Fatalf("AddVehicle: %v", err)
	}

	filename, data, err := svc.Export(session.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filename != "dmv_2020123456_2024.xml" {
		t.Fatalf("filename = %q", filename)
	}
	doc := string(data)
	if !strings.Contains(doc, "<r36>138.00</r36>") {
		t.Fatalf("declaration missing total tax:\n%s", doc)
	}
	if !strings.Contains(doc, "<r06-EVC>BA123AB</r06-EVC>") {
		t.Fatalf("declaration missing plate:\n%s", doc)
	}
}
