package dateshift

import (
	"fmt"
	"strings"
	"time"
)

// ShiftDate shifts a FHIR date, dateTime or instant literal by shift and
// formats the result with the precision of the input. Partial dates (year,
// year-month) are anchored at their first day in UTC.
func ShiftDate(value string, shift time.Duration) (string, error) {
	layout, err := layoutOf(value)
	if err != nil {
		return "", err
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", value, err)
	}
	return t.Add(shift).Format(layout), nil
}

func layoutOf(value string) (string, error) {
	switch {
	case len(value) == 4:
		return "2006", nil
	case len(value) == 7:
		return "2006-01", nil
	case len(value) == 10:
		return time.DateOnly, nil
	case len(value) >= 16 && value[10] == 'T':
		layout := "2006-01-02T15:04"
		rest := value[16:]
		if strings.HasPrefix(rest, ":") && len(rest) >= 3 {
			layout += ":05"
			rest = rest[3:]
		}
		if strings.HasPrefix(rest, ".") {
			n := 1
			for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
				n++
			}
			layout += "." + strings.Repeat("0", n-1)
			rest = rest[n:]
		}
		switch {
		case rest == "":
		case rest == "Z" || strings.HasPrefix(rest, "+") || strings.HasPrefix(rest, "-"):
			layout += "Z07:00"
		default:
			return "", fmt.Errorf("unsupported time zone in %q", value)
		}
		return layout, nil
	default:
		return "", fmt.Errorf("unsupported date format %q", value)
	}
}
