package tlv

import "fmt"

// Kind is the keymaster tag type, shifted into the upper nibble of 16 bits.
type Kind uint16

const (
	KindInvalid    Kind = 0x0000
	KindEnum       Kind = 0x1000
	KindEnumArray  Kind = 0x2000
	KindUint       Kind = 0x3000
	KindUintArray  Kind = 0x4000
	KindUlong      Kind = 0x5000
	KindDate       Kind = 0x6000
	KindBool       Kind = 0x7000
	KindBignum     Kind = 0x8000
	KindBytes      Kind = 0x9000
	KindUlongArray Kind = 0xA000
)

var kindNames = map[Kind]string{
	KindInvalid:    "INVALID",
	KindEnum:       "ENUM",
	KindEnumArray:  "ENUM_REP",
	KindUint:       "UINT",
	KindUintArray:  "UINT_REP",
	KindUlong:      "ULONG",
	KindDate:       "DATE",
	KindBool:       "BOOL",
	KindBignum:     "BIGNUM",
	KindBytes:      "BYTES",
	KindUlongArray: "ULONG_REP",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%#04x)", uint16(k))
}

// Key is the semantic identifier of a tag, without its kind.
type Key uint16

// Keymaster tag identifiers.
const (
	KeyPurpose                     Key = 1
	KeyAlgorithm                   Key = 2
	KeyKeySize                     Key = 3
	KeyBlockMode                   Key = 4
	KeyDigest                      Key = 5
	KeyPadding                     Key = 6
	KeyCallerNonce                 Key = 7
	KeyMinMacLength                Key = 8
	KeyECCurve                     Key = 10
	KeyRSAPublicExponent           Key = 200
	KeyIncludeUniqueID             Key = 202
	KeyRollbackResistance          Key = 303
	KeyEarlyBootOnly               Key = 305
	KeyActiveDatetime              Key = 400
	KeyOriginationExpireDatetime   Key = 401
	KeyUsageExpireDatetime         Key = 402
	KeyMinSecondsBetweenOps        Key = 403
	KeyMaxUsesPerBoot              Key = 404
	KeyUsageCountLimit             Key = 405
	KeyUserID                      Key = 501
	KeyNoAuthRequired              Key = 503
	KeyAuthTimeout                 Key = 505
	KeyAllowWhileOnBody            Key = 506
	KeyTrustedUserPresenceRequired Key = 507
	KeyTrustedConfirmationRequired Key = 508
	KeyUnlockedDeviceRequired      Key = 509
	KeyApplicationID               Key = 601
	KeyApplicationData             Key = 700
	KeyCreationDatetime            Key = 701
	KeyRootOfTrust                 Key = 704
	KeyOSVersion                   Key = 705
	KeyOSPatchlevel                Key = 706
	KeyUniqueID                    Key = 707
	KeyAttestationChallenge        Key = 708
	KeyAttestationApplicationID    Key = 709
	KeyAttestationIDBrand          Key = 710
	KeyAttestationIDDevice         Key = 711
	KeyAttestationIDProduct        Key = 712
	KeyAttestationIDSerial         Key = 713
	KeyAttestationIDIMEI           Key = 714
	KeyAttestationIDMEID           Key = 715
	KeyAttestationIDManufacturer   Key = 716
	KeyAttestationIDModel          Key = 717
	KeyVendorPatchlevel            Key = 718
	KeyBootPatchlevel              Key = 719
	KeyDeviceUniqueAttestation     Key = 720
	KeyNonce                       Key = 1001
	KeyMacLength                   Key = 1003
	KeyResetSinceIDRotation        Key = 1004
	KeyCertificateSerial           Key = 1006
	KeyCertificateSubject          Key = 1007
	KeyCertificateNotBefore        Key = 1008
	KeyCertificateNotAfter         Key = 1009
	KeyMaxBootLevel                Key = 1010
)

var catalogue = map[Key]Kind{
	KeyPurpose:                     KindEnumArray,
	KeyAlgorithm:                   KindEnum,
	KeyKeySize:                     KindUint,
	KeyBlockMode:                   KindEnumArray,
	KeyDigest:                      KindEnumArray,
	KeyPadding:                     KindEnumArray,
	KeyCallerNonce:                 KindBool,
	KeyMinMacLength:                KindUint,
	KeyECCurve:                     KindEnum,
	KeyRSAPublicExponent:           KindUlong,
	KeyIncludeUniqueID:             KindBool,
	KeyRollbackResistance:          KindBool,
	KeyEarlyBootOnly:               KindBool,
	KeyActiveDatetime:              KindDate,
	KeyOriginationExpireDatetime:   KindDate,
	KeyUsageExpireDatetime:         KindDate,
	KeyMinSecondsBetweenOps:        KindUint,
	KeyMaxUsesPerBoot:              KindUint,
	KeyUsageCountLimit:             KindUint,
	KeyUserID:                      KindUint,
	KeyNoAuthRequired:              KindBool,
	KeyAuthTimeout:                 KindUint,
	KeyAllowWhileOnBody:            KindBool,
	KeyTrustedUserPresenceRequired: KindBool,
	KeyTrustedConfirmationRequired: KindBool,
	KeyUnlockedDeviceRequired:      KindBool,
	KeyApplicationID:               KindBytes,
	KeyApplicationData:             KindBytes,
	KeyCreationDatetime:            KindDate,
	KeyRootOfTrust:                 KindBytes,
	KeyOSVersion:                   KindUint,
	KeyOSPatchlevel:                KindUint,
	KeyUniqueID:                    KindBytes,
	KeyAttestationChallenge:        KindBytes,
	KeyAttestationApplicationID:    KindBytes,
	KeyAttestationIDBrand:          KindBytes,
	KeyAttestationIDDevice:         KindBytes,
	KeyAttestationIDProduct:        KindBytes,
	KeyAttestationIDSerial:         KindBytes,
	KeyAttestationIDIMEI:           KindBytes,
	KeyAttestationIDMEID:           KindBytes,
	KeyAttestationIDManufacturer:   KindBytes,
	KeyAttestationIDModel:          KindBytes,
	KeyVendorPatchlevel:            KindUint,
	KeyBootPatchlevel:              KindUint,
	KeyDeviceUniqueAttestation:     KindBool,
	KeyNonce:                       KindBytes,
	KeyMacLength:                   KindUint,
	KeyResetSinceIDRotation:        KindBool,
	KeyCertificateSerial:           KindBignum,
	KeyCertificateSubject:          KindBytes,
	KeyCertificateNotBefore:        KindDate,
	KeyCertificateNotAfter:         KindDate,
	KeyMaxBootLevel:                KindUint,
}

// KindOf returns the kind the catalogue declares for key, or KindInvalid.
func KindOf(key Key) Kind {
	return catalogue[key]
}

// FullTag returns the 32-bit keymaster tag identifier for kind and key.
func FullTag(kind Kind, key Key) uint32 {
	return uint32(kind)<<16 | uint32(key)
}

// SplitTag is the inverse of FullTag.
func SplitTag(tag uint32) (Kind, Key) {
	return Kind(tag >> 16 & 0xF000), Key(tag & 0xFFFF)
}
