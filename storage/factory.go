package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/tee-keymaster-state/interfaces"
)

// StateStoreFactory creates state stores from URI strings.
type StateStoreFactory struct {
	log *slog.Logger
}

// NewStateStoreFactory creates a new factory instance.
func NewStateStoreFactory(logger *slog.Logger) *StateStoreFactory {
	return &StateStoreFactory{log: logger}
}

// StateStoreFor creates a state store from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - memory:// - Process-local store
//   - file:// - Local filesystem store
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2 mount
func (sf *StateStoreFactory) StateStoreFor(uri string) (interfaces.StateStore, error) {
	loc, err := interfaces.ParseStoreLocation(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "memory":
		return NewMemoryStore(loc.Host, sf.log), nil
	case "file":
		return sf.createFileStore(loc)
	case "s3":
		return sf.createS3Store(loc)
	case "vault":
		return sf.createVaultStore(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateReplicatedStore creates a store from a primary URI and mirror URIs.
// Mirrors that cannot be created are skipped with a warning.
func (sf *StateStoreFactory) CreateReplicatedStore(primaryURI string, mirrorURIs []string) (interfaces.StateStore, error) {
	primary, err := sf.StateStoreFor(primaryURI)
	if err != nil {
		return nil, fmt.Errorf("failed to create primary store: %w", err)
	}
	if len(mirrorURIs) == 0 {
		return primary, nil
	}

	mirrors := make([]interfaces.StateStore, 0, len(mirrorURIs))
	for i, uri := range mirrorURIs {
		mirror, err := sf.StateStoreFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create mirror store",
				"err", err,
				slog.Int("mirror", i))
			continue
		}
		mirrors = append(mirrors, mirror)
	}

	return NewReplicatedStore(primary, mirrors, sf.log), nil
}

// createFileStore creates a file system store.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StateStoreFactory) createFileStore(loc interfaces.StoreLocation) (interfaces.StateStore, error) {
	sf.log.Debug("Creating file store", slog.String("uri", loc.Redacted()))

	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, loc.String())
	}

	return NewFileStore(path, sf.log)
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com&path_style=true
func (sf *StateStoreFactory) createS3Store(loc interfaces.StoreLocation) (interfaces.StateStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("bucket", loc.Host))

	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in S3 URI", interfaces.ErrInvalidLocationURI)
	}

	region := loc.Param("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
	}

	return NewS3Store(loc.Host, strings.TrimPrefix(loc.Path, "/"), region, loc.Param("endpoint"),
		accessKey, secretKey, loc.BoolParam("path_style"), sf.log)
}

// createVaultStore creates a Vault KV v2 store.
// URI format: vault://host:8200/mount/path?tls=true&token=...&cert=client.pem&key=client.key
func (sf *StateStoreFactory) createVaultStore(loc interfaces.StoreLocation) (interfaces.StateStore, error) {
	sf.log.Debug("Creating Vault store", slog.String("host", loc.Host))

	mountPath, dataPath, _ := strings.Cut(strings.TrimPrefix(loc.Path, "/"), "/")
	if loc.Host == "" || mountPath == "" {
		return nil, fmt.Errorf("%w: vault URI needs host and mount path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "http"
	if loc.BoolParam("tls") {
		scheme = "https"
	}

	var clientCert *tls.Certificate
	if certFile, keyFile := loc.Param("cert"), loc.Param("key"); certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load vault client certificate: %w", err)
		}
		clientCert = &cert
	}

	return NewVaultStore(fmt.Sprintf("%s://%s", scheme, loc.Host), mountPath, dataPath, loc.Param("token"), clientCert, sf.log)
}
