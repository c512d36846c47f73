// Package dateshift derives a bounded, deterministic date shift from a seed and
// splits it between the clinical domain (cd) and the research domain (rd) so
// that neither portion alone reveals the total.
package dateshift

import (
	"crypto/sha256"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Day and Week are the alignment units of the preserve modes.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// MaxShiftLimit bounds the accepted maximum shift.
const MaxShiftLimit = 100 * 365 * Day

// Preserve constrains the granularity of the total shift.
type Preserve string

const (
	// PreserveNone shifts with millisecond granularity.
	PreserveNone Preserve = "NONE"
	// PreserveDaytime shifts by whole days, keeping the time of day.
	PreserveDaytime Preserve = "DAYTIME"
	// PreserveWeekday shifts by whole weeks, keeping the day of week.
	PreserveWeekday Preserve = "WEEKDAY"
)

// ParsePreserve parses a preserve mode name. The empty string means PreserveNone.
func ParsePreserve(s string) (Preserve, error) {
	switch Preserve(strings.ToUpper(strings.TrimSpace(s))) {
	case "", PreserveNone:
		return PreserveNone, nil
	case PreserveDaytime:
		return PreserveDaytime, nil
	case PreserveWeekday:
		return PreserveWeekday, nil
	default:
		return "", fmt.Errorf("unknown date shift preserve mode %q", s)
	}
}

// Unit returns the granularity every shift in this mode is a multiple of.
func (p Preserve) Unit() time.Duration {
	switch p {
	case PreserveDaytime:
		return Day
	case PreserveWeekday:
		return Week
	default:
		return time.Millisecond
	}
}

// Pair is a split date shift. Only CD is disclosed to the clinical domain;
// RD is kept by the broker for the research domain.
type Pair struct {
	CD time.Duration
	RD time.Duration
}

// Total returns the composed shift.
func (p Pair) Total() time.Duration {
	return p.CD + p.RD
}

// NewSource returns a generator seeded deterministically from seed. The seed
// is hashed so that structurally similar seeds yield unrelated streams.
func NewSource(seed string) *rand.Rand {
	return rand.New(rand.NewChaCha8(sha256.Sum256([]byte(seed))))
}

// Generate draws a Pair from r.
//
// The total shift and the cd portion are drawn independently and uniformly
// from the multiples of the preserve unit in [-maxShift, maxShift]; the rd
// portion is their difference. cd therefore carries no information about the
// total, while cd+rd is always unit-aligned and bounded by maxShift.
func Generate(r *rand.Rand, maxShift time.Duration, preserve Preserve) (Pair, error) {
	if r == nil {
		return Pair{}, fmt.Errorf("random source is required")
	}
	if maxShift < 0 || maxShift > MaxShiftLimit {
		return Pair{}, fmt.Errorf("max date shift %s out of range [0, %s]", maxShift, MaxShiftLimit)
	}
	unit := preserve.Unit()
	total := draw(r, maxShift, unit)
	cd := draw(r, maxShift, unit)
	return Pair{CD: cd, RD: total - cd}, nil
}

// GenerateFromSeed is Generate over NewSource(seed).
func GenerateFromSeed(seed string, maxShift time.Duration, preserve Preserve) (Pair, error) {
	return Generate(NewSource(seed), maxShift, preserve)
}

// draw returns a uniformly chosen multiple of unit in [-maxShift, maxShift].
func draw(r *rand.Rand, maxShift, unit time.Duration) time.Duration {
	k := int64(maxShift / unit)
	if k == 0 {
		return 0
	}
	return time.Duration(r.Int64N(2*k+1)-k) * unit
}

// SplitDays re-splits p so the cd portion is a whole number of days,
// truncated toward zero, moving the remainder into rd. The total is unchanged.
func (p Pair) SplitDays() (cdDays int64, rd time.Duration) {
	cdDays = int64(p.CD / Day)
	return cdDays, p.Total() - time.Duration(cdDays)*Day
}
