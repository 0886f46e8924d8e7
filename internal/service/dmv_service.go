package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
	"dmv-service/internal/export"
	"dmv-service/internal/registry"
	"dmv-service/internal/utils"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// DMVService owns the live sessions and exposes the fleet, lookup and
// export operations. All mutations are scoped to one session and leave its
// state unchanged on failure.
type DMVService struct {
	sessions *SessionStore
	registry registry.Lookup
	log      zerolog.Logger
}

func NewDMVService(sessions *SessionStore, reg registry.Lookup, log zerolog.Logger) *DMVService {
	return &DMVService{
		sessions: sessions,
		registry: reg,
		log:      log,
	}
}

// FleetState is the session snapshot returned to callers after every
// operation: the fleet in insertion order plus fresh totals.
type FleetState struct {
	SessionID    string          `json:"session_id"`
	TaxYear      int             `json:"tax_year"`
	Company      dmv.Company     `json:"company"`
	Vehicles     []dmv.Vehicle   `json:"vehicles"`
	VehicleCount int             `json:"vehicle_count"`
	TotalTax     decimal.Decimal `json:"total_tax"`
}

// CreateSession opens a fresh, exclusively owned fleet session. A zero
// taxYear defaults to the previous calendar year, the period declarations
// are normally filed for.
func (s *DMVService) CreateSession(taxYear int) *Session {
	if taxYear == 0 {
		taxYear = time.Now().Year() - 1
	}
	session := s.sessions.Create(taxYear)
	s.log.Info().
		Str("session_id", session.ID).
		Int("tax_year", taxYear).
		Msg("created fleet session")
	return session
}

func (s *DMVService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return session, nil
}

func (s *DMVService) FleetState(sessionID string) (*FleetState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.lock()
	defer session.unlock()
	return snapshotLocked(session), nil
}

func (s *DMVService) SetCompany(sessionID string, company dmv.Company) (*FleetState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.lock()
	defer session.unlock()
	session.company = company
	return snapshotLocked(session), nil
}

func (s *DMVService) AddVehicle(sessionID string, v dmv.Vehicle) (*FleetState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}

	session.lock()
	defer session.unlock()
	index := session.fleet.Add(v, session.taxYear)
	added := session.fleet.Vehicles()[index]
	s.log.Info().
		Str("session_id", session.ID).
		Str("plate", added.Plate).
		Str("category", string(added.Category)).
		Str("tax", added.Tax.StringFixed(2)).
		Bool("used_fallback", added.UsedFallback).
		Msg("added vehicle")
	return snapshotLocked(session), nil
}

func (s *DMVService) UpdateVehicle(sessionID string, index int, v dmv.Vehicle) (*FleetState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateVehicle(v); err != nil {
		return nil, err
	}

	session.lock()
	defer session.unlock()
	if err := session.fleet.Update(index, v, session.taxYear); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return snapshotLocked(session), nil
}

func (s *DMVService) RemoveVehicle(sessionID string, index int) (*FleetState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.lock()
	defer session.unlock()
	if err := session.fleet.Remove(index); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return snapshotLocked(session), nil
}

// SetTaxYear changes the session's tax period and recomputes the whole
// fleet against the new year's schedules.
func (s *DMVService) SetTaxYear(sessionID string, taxYear int) (*FleetState, error) {
	if taxYear < 2000 || taxYear > 2100 {
		return nil, fmt.Errorf("%w: tax year %d out of range", ErrValidation, taxYear)
	}
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.lock()
	defer session.unlock()
	session.taxYear = taxYear
	session.fleet.RecomputeAll(taxYear)
	return snapshotLocked(session), nil
}

// IngestFrom rebuilds the session's fleet from an ingestion collaborator.
// A failed extraction leaves the current ledger untouched.
func (s *DMVService) IngestFrom(ctx context.Context, sessionID string, src dmv.FleetSource) (*FleetState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	extract, err := src.ExtractFleet(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("fleet ingestion failed")
		return nil, fmt.Errorf("ingestion failed, no vehicles produced: %w", err)
	}
	for _, v := range extract.Vehicles {
		if err := validateVehicle(v); err != nil {
			return nil, err
		}
	}

	session.lock()
	defer session.unlock()
	if extract.Company.TaxID != "" || extract.Company.Name != "" {
		session.company = extract.Company
	}
	session.fleet.Replace(extract.Vehicles, session.taxYear)
	s.log.Info().
		Str("session_id", session.ID).
		Int("vehicles", session.fleet.Len()).
		Msg("ingested fleet")
	return snapshotLocked(session), nil
}

// LookupCompany queries the registry seam. A miss is reported, not fatal.
func (s *DMVService) LookupCompany(ctx context.Context, taxID string) (dmv.Company, error) {
	if registry.NormalizeTaxID(taxID) == "" {
		return dmv.Company{}, fmt.Errorf("%w: tax id is required", ErrValidation)
	}
	company, err := s.registry.Lookup(ctx, taxID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return dmv.Company{}, fmt.Errorf("%w: company %s", ErrNotFound, taxID)
		}
		return dmv.Company{}, fmt.Errorf("registry lookup failed: %w", err)
	}
	s.log.Info().
		Str("tax_id", company.TaxID).
		Str("name", company.Name).
		Msg("resolved company from registry")
	return company, nil
}

// Export builds the declaration from a snapshot of the session. The session
// lock is held for the duration, so the fleet cannot mutate mid-export.
func (s *DMVService) Export(sessionID string) (string, []byte, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return "", nil, err
	}
	session.lock()
	defer session.unlock()

	decl, err := export.Build(session.company, session.fleet.Vehicles(), session.taxYear)
	if err != nil {
		if errors.Is(err, export.ErrValidation) {
			return "", nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return "", nil, err
	}
	data, err := decl.Bytes()
	if err != nil {
		return "", nil, fmt.Errorf("failed to serialize declaration: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID).
		Str("file", decl.Filename()).
		Int("vehicles", session.fleet.Len()).
		Str("total_tax", session.fleet.TotalTax().StringFixed(2)).
		Msg("exported declaration")
	return decl.Filename(), data, nil
}

func snapshotLocked(session *Session) *FleetState {
	return &FleetState{
		SessionID:    session.ID,
		TaxYear:      session.taxYear,
		Company:      session.company,
		Vehicles:     session.fleet.Vehicles(),
		VehicleCount: session.fleet.Len(),
		TotalTax:     session.fleet.TotalTax(),
	}
}

func validateVehicle(v dmv.Vehicle) error {
	if utils.NormalizePlate(v.Plate) == "" {
		return fmt.Errorf("%w: plate is required", ErrValidation)
	}
	if v.Category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if v.MonthsHeld < 0 || v.MonthsHeld > 12 {
		return fmt.Errorf("%w: months held must be between 1 and 12", ErrValidation)
	}
	return nil
}
