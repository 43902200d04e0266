// Package interfaces defines core interfaces and types for the keymaster state
// backbone, separating interface definitions from implementations.
//
// # Shared Types
//
//   - AuthTag: 12-byte authentication tag identifying an issued key blob
//   - OperationHandle: opaque identifier of a multi-step cryptographic operation
//
// # Error Taxonomy
//
// All errors raised by the core are terminal for the current request and map to
// one of the sentinel errors declared in errors.go. Callers test them with
// errors.Is, and a dispatcher answering APDUs can translate them with StatusWord.
//
// # Storage Interfaces
//
// StateStore: durable named-record storage used by the auth tag repository to
// persist its table, its write-ahead journal and its commit marker. Backends
// exist for memory, the local file system, S3 and Vault.
//
// # Call-outs
//
// SubjectDecoder: delegated decoding of an X.501 certificate subject, used only
// to validate certificate-subject tags.
package interfaces
