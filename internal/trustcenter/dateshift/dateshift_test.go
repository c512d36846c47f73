package dateshift

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DateShiftSuite struct {
	suite.Suite
}

func TestDateShiftSuite(t *testing.T) {
	suite.Run(t, new(DateShiftSuite))
}

// =============================================================================
// Preserve modes
// =============================================================================

func (s *DateShiftSuite) TestParsePreserve() {
	for in, want := range map[string]Preserve{
		"":        PreserveNone,
		"NONE":    PreserveNone,
		"daytime": PreserveDaytime,
		"WEEKDAY": PreserveWeekday,
	} {
		got, err := ParsePreserve(in)
		s.Require().NoError(err)
		s.Equal(want, got)
	}
	_, err := ParsePreserve("MONTH")
	s.Error(err)
}

// =============================================================================
// Generation properties
// =============================================================================

func (s *DateShiftSuite) TestDeterminism() {
	for _, mode := range []Preserve{PreserveNone, PreserveDaytime, PreserveWeekday} {
		a, err := GenerateFromSeed("patient123", 100*Day, mode)
		s.Require().NoError(err)
		b, err := GenerateFromSeed("patient123", 100*Day, mode)
		s.Require().NoError(err)
		s.Equal(a, b, mode)
	}
}

func (s *DateShiftSuite) TestBoundedAndAligned() {
	maxShift := 365 * Day
	for i := 0; i < 2000; i++ {
		seed := fmt.Sprintf("seed-%d", i)
		for _, mode := range []Preserve{PreserveNone, PreserveDaytime, PreserveWeekday} {
			p, err := GenerateFromSeed(seed, maxShift, mode)
			s.Require().NoError(err)
			s.LessOrEqual(p.CD.Abs(), maxShift)
			s.LessOrEqual(p.Total().Abs(), maxShift)
			switch mode {
			case PreserveDaytime:
				s.Zero(p.Total() % Day)
			case PreserveWeekday:
				s.Zero(p.Total() % Week)
			default:
				s.Zero(p.Total() % time.Millisecond)
			}
		}
	}
}

func (s *DateShiftSuite) TestExamples() {
	p, err := GenerateFromSeed("patient123", 100*Day, PreserveNone)
	s.Require().NoError(err)
	s.LessOrEqual(p.CD.Abs(), 100*Day)

	p, err = GenerateFromSeed("patient123", 365*Day, PreserveDaytime)
	s.Require().NoError(err)
	s.Zero(p.Total().Milliseconds() % 86400000)
}

func (s *DateShiftSuite) TestShiftBelowUnitIsZero() {
	p, err := GenerateFromSeed("x", 3*Day, PreserveWeekday)
	s.Require().NoError(err)
	s.Zero(p.CD)
	s.Zero(p.RD)
}

func (s *DateShiftSuite) TestRejectsInvalidInput() {
	_, err := Generate(nil, Day, PreserveNone)
	s.Error(err)
	_, err = GenerateFromSeed("x", -Day, PreserveNone)
	s.Error(err)
	_, err = GenerateFromSeed("x", MaxShiftLimit+Day, PreserveNone)
	s.Error(err)
}

func (s *DateShiftSuite) TestInjectedSource() {
	r := rand.New(rand.NewPCG(1, 2))
	p, err := Generate(r, 10*Day, PreserveDaytime)
	s.Require().NoError(err)

	r = rand.New(rand.NewPCG(1, 2))
	q, err := Generate(r, 10*Day, PreserveDaytime)
	s.Require().NoError(err)
	s.Equal(p, q)
}

func (s *DateShiftSuite) TestSplitDays() {
	p := Pair{CD: 3*Day + 5*time.Hour, RD: -Day}
	days, rd := p.SplitDays()
	s.Equal(int64(3), days)
	s.Equal(p.Total(), time.Duration(days)*Day+rd)

	p = Pair{CD: -(2*Day + time.Minute), RD: 0}
	days, rd = p.SplitDays()
	s.Equal(int64(-2), days)
	s.Equal(-time.Minute, rd)
}

func TestDistribution(t *testing.T) {
	if testing.Short() {
		t.Skip("distribution check draws 100k pairs")
	}
	const n = 100_000
	cds := make(map[time.Duration]struct{}, n)
	rds := make(map[time.Duration]struct{}, n)
	totals := make(map[time.Duration]struct{}, n)
	for i := 0; i < n; i++ {
		p, err := GenerateFromSeed(fmt.Sprintf("patient-%d", i), 365*Day, PreserveNone)
		require.NoError(t, err)
		cds[p.CD] = struct{}{}
		rds[p.RD] = struct{}{}
		totals[p.Total()] = struct{}{}
	}
	assert.Greater(t, len(cds), n*9/10)
	assert.Greater(t, len(rds), n*9/10)
	assert.Greater(t, len(totals), n*9/10)
}

// =============================================================================
// Date literals
// =============================================================================

func TestShiftDate(t *testing.T) {
	cases := []struct {
		in    string
		shift time.Duration
		want  string
	}{
		{in: "2020-01-01", shift: -Day, want: "2019-12-31"},
		{in: "2020-02", shift: 40 * Day, want: "2020-03"},
		{in: "2020", shift: -Day, want: "2019"},
		{in: "2020-03-01T08:30:00+01:00", shift: Week, want: "2020-03-08T08:30:00+01:00"},
		{in: "2020-03-01T08:30:00Z", shift: 90 * time.Minute, want: "2020-03-01T10:00:00Z"},
		{in: "2020-03-01T08:30:00.123Z", shift: time.Millisecond, want: "2020-03-01T08:30:00.124Z"},
		{in: "2020-03-01T08:30", shift: time.Hour, want: "2020-03-01T09:30"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ShiftDate(tc.in, tc.shift)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "20", "2020-13-01", "2020-03-01T08", "2020-03-01T08:30:00 CET"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ShiftDate(bad, Day)
			assert.Error(t, err)
		})
	}
}

func TestShiftComposes(t *testing.T) {
	p, err := GenerateFromSeed("patient123", 365*Day, PreserveDaytime)
	require.NoError(t, err)

	viaCD, err := ShiftDate("2021-06-15", p.CD)
	require.NoError(t, err)
	viaBoth, err := ShiftDate(viaCD, p.RD)
	require.NoError(t, err)
	direct, err := ShiftDate("2021-06-15", p.Total())
	require.NoError(t, err)
	assert.Equal(t, direct, viaBoth)
}
