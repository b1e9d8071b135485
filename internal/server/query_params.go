package server

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var errInvalidNumber = errors.New("invalid_number")

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalFloat(value string) (*float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil, errInvalidNumber
	}
	return &parsed, nil
}

// intOrDefault parses an optional integer query value.
func intOrDefault(value string, def int) (int, error) {
	parsed, err := parseOptionalInt(value)
	if err != nil {
		return 0, err
	}
	if parsed == nil {
		return def, nil
	}
	return *parsed, nil
}
