package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is returned when a fixed-capacity resource (arena,
	// auth tag table) has no room left for the request.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidData is returned when a value violates the size or format policy
	// of its key.
	ErrInvalidData = errors.New("invalid data")

	// ErrConditionsNotSatisfied is returned when a record is viewed as the wrong
	// variant or an offset does not reference a record.
	ErrConditionsNotSatisfied = errors.New("conditions not satisfied")

	// ErrCommandNotAllowed is returned when an operation is not permitted in the
	// current state.
	ErrCommandNotAllowed = errors.New("command not allowed")

	// ErrNotFound is returned when removing or updating a non-existent entry.
	// It matches ErrCommandNotAllowed as well.
	ErrNotFound = fmt.Errorf("%w: entry not found", ErrCommandNotAllowed)
)

var (
	// ErrRecordNotFound is returned by a StateStore when the named record does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrCorruptState is returned when persisted state fails its consistency checks.
	ErrCorruptState = errors.New("corrupt persisted state")
)

// ISO 7816-4 status words.
const (
	SWNoError                uint16 = 0x9000
	SWFileFull               uint16 = 0x6A84
	SWDataInvalid            uint16 = 0x6984
	SWConditionsNotSatisfied uint16 = 0x6985
	SWCommandNotAllowed      uint16 = 0x6986
	SWUnknown                uint16 = 0x6F00
)

// StatusWord maps an error of the core taxonomy to the status word a
// dispatcher returns for it. A nil error maps to SWNoError.
func StatusWord(err error) uint16 {
	switch {
	case err == nil:
		return SWNoError
	case errors.Is(err, ErrResourceExhausted):
		return SWFileFull
	case errors.Is(err, ErrInvalidData):
		return SWDataInvalid
	case errors.Is(err, ErrConditionsNotSatisfied):
		return SWConditionsNotSatisfied
	case errors.Is(err, ErrCommandNotAllowed):
		return SWCommandNotAllowed
	default:
		return SWUnknown
	}
}
