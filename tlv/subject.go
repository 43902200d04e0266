package tlv

import (
	encoding_asn1 "encoding/asn1"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var oidCommonName = encoding_asn1.ObjectIdentifier{2, 5, 4, 3}

var (
	errMalformedSubject = errors.New("malformed subject")
	errNoCommonName     = errors.New("subject has no common name")
)

// DERSubjectDecoder walks a DER encoded X.501 Name and returns the length of
// its common name value.
type DERSubjectDecoder struct{}

// DecodeSubject implements interfaces.SubjectDecoder.
func (DERSubjectDecoder) DecodeSubject(der []byte) (int, error) {
	input := cryptobyte.String(der)

	var rdns cryptobyte.String
	if !input.ReadASN1(&rdns, asn1.SEQUENCE) || !input.Empty() {
		return 0, errMalformedSubject
	}

	cn := -1
	for !rdns.Empty() {
		var set cryptobyte.String
		if !rdns.ReadASN1(&set, asn1.SET) {
			return 0, errMalformedSubject
		}
		for !set.Empty() {
			var atv cryptobyte.String
			if !set.ReadASN1(&atv, asn1.SEQUENCE) {
				return 0, errMalformedSubject
			}

			var oid encoding_asn1.ObjectIdentifier
			var value cryptobyte.String
			var tag asn1.Tag
			if !atv.ReadASN1ObjectIdentifier(&oid) || !atv.ReadAnyASN1(&value, &tag) || !atv.Empty() {
				return 0, errMalformedSubject
			}
			if !oid.Equal(oidCommonName) {
				continue
			}
			if tag != asn1.UTF8String && tag != asn1.PrintableString {
				return 0, fmt.Errorf("%w: common name has string tag %d", errMalformedSubject, tag)
			}
			cn = len(value)
		}
	}

	if cn < 0 {
		return 0, errNoCommonName
	}
	return cn, nil
}
