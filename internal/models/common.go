package models

import "strconv"

// ErrorResponse is the failure envelope returned by the API
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// PairKey returns the canonical key of an unordered user pair.
func PairKey(a, b uint) string {
	low, high := OrderedPair(a, b)
	return strconv.FormatUint(uint64(low), 10) + ":" + strconv.FormatUint(uint64(high), 10)
}

// OrderedPair returns (min, max).
func OrderedPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}
