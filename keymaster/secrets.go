package keymaster

import (
	"fmt"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// Maximum secret sizes.
const (
	MasterKeyLen       = 32
	HmacKeyLen         = 32
	HmacSeedLen        = 32
	HmacNonceLen       = 16
	ComputedHmacKeyLen = 32
)

type secret struct {
	buf [32]byte
	n   int
	set bool
}

func (s *secret) init(name string, max int, b []byte) error {
	if s.set {
		return nil
	}
	if len(b) == 0 || len(b) > max {
		return fmt.Errorf("%w: %s must be 1 to %d bytes, got %d", interfaces.ErrInvalidData, name, max, len(b))
	}
	s.n = copy(s.buf[:], b)
	s.set = true
	return nil
}

func (s *secret) bytes() []byte {
	if !s.set {
		return nil
	}
	return s.buf[:s.n]
}

func (s *secret) wipe() {
	clear(s.buf[:])
	s.n = 0
	s.set = false
}

// Secrets holds the process-wide key material.
type Secrets struct {
	masterKey       secret
	hmacKey         secret
	hmacSeed        secret
	hmacNonce       secret
	computedHmacKey secret
}

// SecretsStatus reports which secrets have been provisioned.
type SecretsStatus struct {
	MasterKey       bool `json:"master_key"`
	HmacKey         bool `json:"hmac_key"`
	HmacSeed        bool `json:"hmac_seed"`
	HmacNonce       bool `json:"hmac_nonce"`
	ComputedHmacKey bool `json:"computed_hmac_key"`
}

// InitMasterKey sets the master key unless it is already set.
func (s *Secrets) InitMasterKey(b []byte) error {
	return s.masterKey.init("master key", MasterKeyLen, b)
}

// InitHmacKey sets the HMAC key unless it is already set.
func (s *Secrets) InitHmacKey(b []byte) error {
	return s.hmacKey.init("hmac key", HmacKeyLen, b)
}

// InitHmacSeed sets the HMAC seed unless it is already set.
func (s *Secrets) InitHmacSeed(b []byte) error {
	return s.hmacSeed.init("hmac seed", HmacSeedLen, b)
}

// InitHmacNonce sets the HMAC nonce unless it is already set.
func (s *Secrets) InitHmacNonce(b []byte) error {
	return s.hmacNonce.init("hmac nonce", HmacNonceLen, b)
}

// SetHmacNonce replaces a provisioned nonce with one of the same length.
func (s *Secrets) SetHmacNonce(b []byte) error {
	if !s.hmacNonce.set {
		return fmt.Errorf("%w: hmac nonce not provisioned", interfaces.ErrConditionsNotSatisfied)
	}
	if len(b) != s.hmacNonce.n {
		return fmt.Errorf("%w: hmac nonce must be %d bytes, got %d", interfaces.ErrInvalidData, s.hmacNonce.n, len(b))
	}
	copy(s.hmacNonce.buf[:], b)
	return nil
}

// InitComputedHmacKey sets the derived HMAC key unless it is already set.
func (s *Secrets) InitComputedHmacKey(b []byte) error {
	return s.computedHmacKey.init("computed hmac key", ComputedHmacKeyLen, b)
}

// MasterKey returns the master key, or nil if unset. The slice aliases the
// secret and is zeroed by Wipe.
func (s *Secrets) MasterKey() []byte { return s.masterKey.bytes() }

// HmacKey returns the HMAC key, or nil if unset.
func (s *Secrets) HmacKey() []byte { return s.hmacKey.bytes() }

// HmacSeed returns the HMAC seed, or nil if unset.
func (s *Secrets) HmacSeed() []byte { return s.hmacSeed.bytes() }

// HmacNonce returns the HMAC nonce, or nil if unset.
func (s *Secrets) HmacNonce() []byte { return s.hmacNonce.bytes() }

// ComputedHmacKey returns the derived HMAC key, or nil if unset.
func (s *Secrets) ComputedHmacKey() []byte { return s.computedHmacKey.bytes() }

// Status reports which secrets are set.
func (s *Secrets) Status() SecretsStatus {
	return SecretsStatus{
		MasterKey:       s.masterKey.set,
		HmacKey:         s.hmacKey.set,
		HmacSeed:        s.hmacSeed.set,
		HmacNonce:       s.hmacNonce.set,
		ComputedHmacKey: s.computedHmacKey.set,
	}
}

// Wipe zeroes every secret and allows it to be set again.
func (s *Secrets) Wipe() {
	s.masterKey.wipe()
	s.hmacKey.wipe()
	s.hmacSeed.wipe()
	s.hmacNonce.wipe()
	s.computedHmacKey.wipe()
}
