package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// StateStore provides durable named-record storage. Save must replace a record
// atomically: a reader observes either the previous or the new content.
type StateStore interface {
	// Load returns the content of a record, or ErrRecordNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save creates or replaces a record.
	Save(ctx context.Context, name string, data []byte) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, name string) error

	// Available reports whether the backend can currently serve requests.
	Available(ctx context.Context) bool

	// Name identifies the store in logs.
	Name() string

	// LocationURI returns a URI for the store with credentials redacted.
	LocationURI() string
}

// StoreLocation is a parsed state store URI:
//
//	scheme://[user[:password]@]host[:port][/path][?params]
type StoreLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	// Auth is the userinfo part, "user" or "user:password".
	Auth string

	redacted string
}

// ParseStoreLocation parses uri and checks that its scheme names a known backend.
func ParseStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "memory", "file", "s3", "vault":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported storage scheme: %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	loc := StoreLocation{
		Raw:      uri,
		Scheme:   parsed.Scheme,
		Host:     parsed.Host,
		Path:     parsed.Path,
		Query:    parsed.Query(),
		redacted: parsed.Redacted(),
	}
	if parsed.User != nil {
		loc.Auth = parsed.User.String()
	}
	if loc.Query.Has("token") {
		q := parsed.Query()
		q.Set("token", "xxxxx")
		parsed.RawQuery = q.Encode()
		loc.redacted = parsed.Redacted()
	}
	return loc, nil
}

// String returns the original URI.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// Redacted returns the URI with the password and any token parameter masked.
func (loc StoreLocation) Redacted() string {
	return loc.redacted
}

// Param returns a query parameter value.
func (loc StoreLocation) Param(name string) string {
	return loc.Query.Get(name)
}

// BoolParam reports whether a query parameter is set to a true value.
func (loc StoreLocation) BoolParam(name string) bool {
	v, err := strconv.ParseBool(loc.Query.Get(name))
	if err == nil {
		return v
	}
	return loc.Query.Get(name) == "yes"
}
