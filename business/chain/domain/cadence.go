// Package domain contains the core types of the chain context.
package domain

import (
	"fmt"
	"strings"
)

// Cadence is one of the two block production rates being compared.
type Cadence uint8

const (
	// Standard is the ~2s block cadence.
	Standard Cadence = iota
	// Flash is the ~200ms flashblock cadence.
	Flash
)

// Cadences lists every cadence in display order.
var Cadences = [...]Cadence{Standard, Flash}

// NumCadences sizes per-cadence arrays.
const NumCadences = len(Cadences)

func (c Cadence) String() string {
	switch c {
	case Standard:
		return "standard"
	case Flash:
		return "flash"
	default:
		return fmt.Sprintf("cadence(%d)", uint8(c))
	}
}

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	return c == Standard || c == Flash
}

// ParseCadence parses "standard" or "flash".
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return Standard, nil
	case "flash":
		return Flash, nil
	default:
		return 0, fmt.Errorf("unknown cadence %q", s)
	}
}
