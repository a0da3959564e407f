// Package utils holds small helpers shared across the client: retries with
// exponential backoff and duration parsing.
package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var extendedUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDuration extends time.ParseDuration with whole days ("7d") and
// weeks ("2w"), which token and cache lifetimes are usually given in.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	for suffix, unit := range extendedUnits {
		if !strings.HasSuffix(s, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, suffix))
		if err != nil {
			break
		}
		return time.Duration(n) * unit, nil
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}
