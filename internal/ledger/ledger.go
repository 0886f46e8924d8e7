// Package ledger holds the ordered fleet of vehicle records owned by one
// session. A Ledger is not safe for concurrent use; the owning session
// serializes access.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dmv-service/internal/domain/dmv"
	"dmv-service/internal/tax"
	"dmv-service/internal/utils"
)

// Ledger is an insertion-ordered, mutable collection of vehicle records.
// Every mutation recomputes the affected record so the derived fields never
// go stale.
type Ledger struct {
	vehicles []dmv.Vehicle
}

func New() *Ledger {
	return &Ledger{}
}

// Add appends a vehicle, normalizes its plate and computes its derived
// fields for the given tax year. The index of the new record is returned.
func (l *Ledger) Add(v dmv.Vehicle, taxYear int) int {
	v.Plate = utils.NormalizePlate(v.Plate)
	tax.Apply(&v, taxYear)
	l.vehicles = append(l.vehicles, v)
	return len(l.vehicles) - 1
}

// Update replaces the record at index with the given editable fields,
// preserving its position, and recomputes it.
func (l *Ledger) Update(index int, v dmv.Vehicle, taxYear int) error {
	if index < 0 || index >= len(l.vehicles) {
		return fmt.Errorf("vehicle index %d out of range", index)
	}
	v.Plate = utils.NormalizePlate(v.Plate)
	tax.Apply(&v, taxYear)
	l.vehicles[index] = v
	return nil
}

// Remove deletes the record at index.
func (l *Ledger) Remove(index int) error {
	if index < 0 || index >= len(l.vehicles) {
		return fmt.Errorf("vehicle index %d out of range", index)
	}
	l.vehicles = append(l.vehicles[:index], l.vehicles[index+1:]...)
	return nil
}

// RecomputeAll recomputes every record in place for the given tax year.
// It is idempotent: repeated calls with unchanged records produce identical
// derived fields.
func (l *Ledger) RecomputeAll(taxYear int) {
	for i := range l.vehicles {
		tax.Apply(&l.vehicles[i], taxYear)
	}
}

// Replace rebuilds the ledger from scratch, used after a bulk ingestion.
func (l *Ledger) Replace(vehicles []dmv.Vehicle, taxYear int) {
	l.vehicles = l.vehicles[:0]
	for _, v := range vehicles {
		l.Add(v, taxYear)
	}
}

// TotalTax sums the computed tax of every record. The sum is computed
// fresh on every call; nothing is cached.
func (l *Ledger) TotalTax() decimal.Decimal {
	total := decimal.Zero
	for _, v := range l.vehicles {
		total = total.Add(v.Tax)
	}
	return total
}

func (l *Ledger) Len() int {
	return len(l.vehicles)
}

// Vehicles returns a snapshot copy of the records in insertion order.
func (l *Ledger) Vehicles() []dmv.Vehicle {
	out := make([]dmv.Vehicle, len(l.vehicles))
	copy(out, l.vehicles)
	return out
}
