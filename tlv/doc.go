// Package tlv lays out typed key-parameter records inside an arena.
//
// Every record starts with a 3-byte header, a type discriminant followed by a
// big-endian payload length:
//
//	+------+--------+-----------------+
//	| type | length | payload[length] |
//	+------+--------+-----------------+
//	  1 B     2 B
//
// Value records (TypeByteBlob, TypeInteger) carry raw bytes or a 4/8-byte
// big-endian integer. Tag records (TypeTag) are fixed-size and describe one
// key parameter:
//
//	payload = kind(2) | key(2) | value(2)
//
// where value is either an inline scalar (bool, enum) or the Offset of a value
// record. The kind uses the keymaster tag-type encoding (KindBytes = 0x9000,
// ...), so FullTag(kind, key) reproduces the 32-bit tag identifiers of the
// keymaster HAL.
//
// Constructors validate the key against the tag catalogue and, for byte tags,
// against the size ceilings of a Policy. Views (ByteTagAt, IntegerTagAt, ...)
// are plain values parameterized by offset; they check both the record type
// and the tag kind and fail with interfaces.ErrConditionsNotSatisfied on a
// mismatch.
package tlv
