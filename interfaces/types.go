package interfaces

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// AuthTagLength is the length of an AES-GCM authentication tag wrapping a key blob.
const AuthTagLength = 12

// AuthTag identifies an issued key blob. It deduplicates blobs and keys the
// usage counters used for rate limiting.
type AuthTag [AuthTagLength]byte

// NewAuthTagFromBytes creates an auth tag from exactly AuthTagLength bytes.
func NewAuthTagFromBytes(source []byte) (AuthTag, error) {
	if len(source) != AuthTagLength {
		return AuthTag{}, fmt.Errorf("%w: auth tag must be %d bytes, got %d", ErrInvalidData, AuthTagLength, len(source))
	}

	var tag AuthTag
	copy(tag[:], source)
	return tag, nil
}

// NewAuthTagFromHex parses a hex encoded auth tag, with or without 0x prefix.
func NewAuthTagFromHex(source string) (AuthTag, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 2*AuthTagLength {
		return AuthTag{}, fmt.Errorf("%w: hex auth tag must be %d characters", ErrInvalidData, 2*AuthTagLength)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return AuthTag{}, fmt.Errorf("%w: invalid hex format: %v", ErrInvalidData, err)
	}
	return NewAuthTagFromBytes(raw)
}

// String returns hex representation.
func (t AuthTag) String() string {
	return hex.EncodeToString(t[:])
}

// Bytes returns the raw tag bytes.
func (t AuthTag) Bytes() []byte {
	return t[:]
}

// MarshalText encodes the tag as hex.
func (t AuthTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a hex tag.
func (t *AuthTag) UnmarshalText(text []byte) error {
	tag, err := NewAuthTagFromHex(string(text))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}

// IsZero reports whether every byte of the tag is zero.
func (t AuthTag) IsZero() bool {
	return t == AuthTag{}
}

// OperationHandle correlates the steps of a cryptographic operation across
// separate external calls. The zero handle is never assigned.
type OperationHandle uint64

// InvalidOperationHandle is the zero handle.
const InvalidOperationHandle OperationHandle = 0

// ParseOperationHandle parses a hex encoded handle.
func ParseOperationHandle(s string) (OperationHandle, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return InvalidOperationHandle, fmt.Errorf("%w: invalid operation handle: %v", ErrInvalidData, err)
	}
	if v == 0 {
		return InvalidOperationHandle, fmt.Errorf("%w: operation handle must be non-zero", ErrInvalidData)
	}
	return OperationHandle(v), nil
}

// String returns the handle as fixed width hex.
func (h OperationHandle) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// SubjectDecoder decodes a DER encoded X.501 certificate subject and returns
// the length of its decoded common name. It is called only to validate
// certificate-subject tags.
type SubjectDecoder interface {
	DecodeSubject(der []byte) (int, error)
}
