package trace

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Timestamp is a millisecond offset from trace start kept exactly as written,
// e.g. "123.456". Tools downstream expect the text back unchanged, so it is
// never routed through float64.
type Timestamp string

// Decimal returns the exact numeric value of the offset in milliseconds.
func (t Timestamp) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(t))
}

// Sub returns t-u in milliseconds.
func (t Timestamp) Sub(u Timestamp) (decimal.Decimal, error) {
	a, err := t.Decimal()
	if err != nil {
		return decimal.Zero, err
	}
	b, err := u.Decimal()
	if err != nil {
		return decimal.Zero, err
	}
	return a.Sub(b), nil
}

// Equal compares two offsets numerically, so "1.50" equals "1.5".
func (t Timestamp) Equal(u Timestamp) bool {
	d, err := t.Sub(u)
	return err == nil && d.IsZero()
}

const msPerDay = 24 * 60 * 60 * 1000

// oleEpoch is day zero of the $STARTTIME encoding.
var oleEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// StartTime is the absolute start of a trace. Raw is the $STARTTIME value
// as written (days since 1899-12-30 plus fraction of a day); Time is the
// same instant resolved to the millisecond.
type StartTime struct {
	Raw  string
	Time time.Time
}

// ParseStartTime decodes a "<days>.<fraction>" value. Either side of the dot
// may be empty.
func ParseStartTime(raw string) (StartTime, error) {
	intPart, fracPart, ok := strings.Cut(raw, ".")
	if !ok {
		return StartTime{}, fmt.Errorf("start time %q: missing '.'", raw)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return StartTime{}, fmt.Errorf("start time %q: expected digits around '.'", raw)
	}
	days := 0
	if intPart != "" {
		n, err := strconv.Atoi(intPart)
		if err != nil {
			return StartTime{}, fmt.Errorf("start time %q: invalid day count: %w", raw, err)
		}
		days = n
	}
	if fracPart == "" {
		fracPart = "0"
	}
	frac, err := decimal.NewFromString("0." + fracPart)
	if err != nil {
		return StartTime{}, fmt.Errorf("start time %q: invalid day fraction: %w", raw, err)
	}
	ms := frac.Mul(decimal.NewFromInt(msPerDay)).Round(0).IntPart()

	t := oleEpoch.AddDate(0, 0, days).Add(time.Duration(ms) * time.Millisecond)
	return StartTime{Raw: raw, Time: t}, nil
}

// NewStartTime encodes t with ten fractional digits, the precision PEAK
// tools write.
func NewStartTime(t time.Time) StartTime {
	t = t.UTC().Truncate(time.Millisecond)
	ms := t.Sub(oleEpoch).Milliseconds()
	days, rem := ms/msPerDay, ms%msPerDay
	if rem < 0 {
		days--
		rem += msPerDay
	}
	frac := decimal.NewFromInt(rem).DivRound(decimal.NewFromInt(msPerDay), 10).StringFixed(10)
	return StartTime{
		Raw:  fmt.Sprintf("%d.%s", days, strings.TrimPrefix(frac, "0.")),
		Time: t,
	}
}

// Comment renders the human readable echo written as "; Start time: ...",
// in the form YYYY-MM-DD HH:MM:SS.mmm.uuu.
func (s StartTime) Comment() string {
	ns := s.Time.Nanosecond()
	return fmt.Sprintf("%s.%03d.%d", s.Time.Format("2006-01-02 15:04:05"), ns/1e6, (ns/1e3)%1000)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
