package tlv

import (
	"fmt"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// Limits holds the maximum value sizes enforced on byte tags.
type Limits struct {
	AttestationApplicationID int
	SubjectCommonName        int
	ApplicationIDData        int
	AttestationChallenge     int
	AttestationIDs           int
}

// DefaultLimits returns the ceilings of the reference configuration.
func DefaultLimits() Limits {
	return Limits{
		AttestationApplicationID: 1024,
		SubjectCommonName:        65,
		ApplicationIDData:        64,
		AttestationChallenge:     128,
		AttestationIDs:           64,
	}
}

// Validate checks that every ceiling is positive.
func (l Limits) Validate() error {
	for name, v := range map[string]int{
		"attestation application id": l.AttestationApplicationID,
		"subject common name":        l.SubjectCommonName,
		"application id/data":        l.ApplicationIDData,
		"attestation challenge":      l.AttestationChallenge,
		"attestation ids":            l.AttestationIDs,
	} {
		if v <= 0 {
			return fmt.Errorf("limit for %s must be positive, got %d", name, v)
		}
	}
	return nil
}

// Policy decides which byte-tag values are acceptable.
type Policy struct {
	Limits  Limits
	Subject interfaces.SubjectDecoder
}

// DefaultPolicy returns DefaultLimits with the DER subject decoder.
func DefaultPolicy() Policy {
	return Policy{Limits: DefaultLimits(), Subject: DERSubjectDecoder{}}
}

// ValidateBytes checks value against the ceiling of key. Keys outside the set
// of recognized byte tags are rejected with interfaces.ErrInvalidData.
func (p Policy) ValidateBytes(key Key, value []byte) error {
	var ceiling int
	n := len(value)

	switch key {
	case KeyAttestationApplicationID:
		ceiling = p.Limits.AttestationApplicationID
	case KeyCertificateSubject:
		if p.Subject == nil {
			return fmt.Errorf("%w: no subject decoder configured", interfaces.ErrInvalidData)
		}
		decoded, err := p.Subject.DecodeSubject(value)
		if err != nil {
			return fmt.Errorf("%w: certificate subject: %v", interfaces.ErrInvalidData, err)
		}
		ceiling, n = p.Limits.SubjectCommonName, decoded
	case KeyApplicationID, KeyApplicationData:
		ceiling = p.Limits.ApplicationIDData
	case KeyAttestationChallenge:
		ceiling = p.Limits.AttestationChallenge
	case KeyAttestationIDBrand, KeyAttestationIDDevice, KeyAttestationIDProduct, KeyAttestationIDSerial,
		KeyAttestationIDIMEI, KeyAttestationIDMEID, KeyAttestationIDManufacturer, KeyAttestationIDModel:
		ceiling = p.Limits.AttestationIDs
	case KeyRootOfTrust, KeyNonce:
		// Nonce length is checked when the operation begins.
		return nil
	default:
		return fmt.Errorf("%w: key %d is not a recognized byte tag", interfaces.ErrInvalidData, key)
	}

	if n > ceiling {
		return fmt.Errorf("%w: key %d value length %d exceeds %d", interfaces.ErrInvalidData, key, n, ceiling)
	}
	return nil
}
