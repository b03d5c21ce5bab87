// Package sentinel holds infrastructure error facts. Stores return these
// wrapped so services and transports can classify failures with errors.Is.
package sentinel

import "errors"

var (
	// ErrUnavailable means a backing store or cache cannot be reached.
	ErrUnavailable = errors.New("unavailable")
	// ErrInvalidState means stored data violates a storage contract.
	ErrInvalidState = errors.New("invalid state")
)
