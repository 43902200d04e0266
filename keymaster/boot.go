package keymaster

import (
	"fmt"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// MaxBootDigestLen bounds the verified boot key and hash.
const MaxBootDigestLen = 32

// BootParams describes the device integrity state established at boot.
type BootParams struct {
	OSVersion        uint32 `json:"os_version"`
	OSPatchLevel     uint32 `json:"os_patch_level"`
	VerifiedBootKey  []byte `json:"verified_boot_key"`
	VerifiedBootHash []byte `json:"verified_boot_hash"`
	Verified         bool   `json:"verified"`
	SelfSigned       bool   `json:"self_signed"`
	DeviceLocked     bool   `json:"device_locked"`
}

type bootState struct {
	set bool

	osVersion    uint32
	osPatchLevel uint32
	key          [MaxBootDigestLen]byte
	keyLen       int
	hash         [MaxBootDigestLen]byte
	hashLen      int
	verified     bool
	selfSigned   bool
	deviceLocked bool
}

func (b *bootState) store(p BootParams) error {
	if b.set {
		return fmt.Errorf("%w: boot parameters already provisioned", interfaces.ErrCommandNotAllowed)
	}
	if len(p.VerifiedBootKey) > MaxBootDigestLen || len(p.VerifiedBootHash) > MaxBootDigestLen {
		return fmt.Errorf("%w: verified boot key and hash are limited to %d bytes", interfaces.ErrInvalidData, MaxBootDigestLen)
	}

	*b = bootState{
		set:          true,
		osVersion:    p.OSVersion,
		osPatchLevel: p.OSPatchLevel,
		verified:     p.Verified,
		selfSigned:   p.SelfSigned,
		deviceLocked: p.DeviceLocked,
	}
	b.keyLen = copy(b.key[:], p.VerifiedBootKey)
	b.hashLen = copy(b.hash[:], p.VerifiedBootHash)
	return nil
}

func (b *bootState) load() (BootParams, bool) {
	if !b.set {
		return BootParams{}, false
	}
	return BootParams{
		OSVersion:        b.osVersion,
		OSPatchLevel:     b.osPatchLevel,
		VerifiedBootKey:  append([]byte(nil), b.key[:b.keyLen]...),
		VerifiedBootHash: append([]byte(nil), b.hash[:b.hashLen]...),
		Verified:         b.verified,
		SelfSigned:       b.selfSigned,
		DeviceLocked:     b.deviceLocked,
	}, true
}

func (b *bootState) wipe() {
	clear(b.key[:])
	clear(b.hash[:])
	*b = bootState{}
}
