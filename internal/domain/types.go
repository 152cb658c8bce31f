package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedVector = errors.New("malformed vector")

// Vector is an embedding persisted as a JSON array.
type Vector []float64

func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// DecodeVector parses a stored vector. Empty input and empty arrays are
// reported as malformed so callers can skip the row.
func DecodeVector(raw string) (Vector, error) {
	if raw == "" || raw == "null" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedVector)
	}
	var v Vector
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrMalformedVector)
	}
	return v, nil
}
