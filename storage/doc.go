// Package storage provides durable named-record stores for keymaster state.
//
// Every backend implements interfaces.StateStore. Records are small opaque
// byte strings (auth tag snapshots, journals and commit markers) addressed by
// a flat name. Save replaces a record atomically so that a reader observes
// either the previous or the new content, never a mix.
//
// # Storage URI Format
//
// Stores are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://name (process-local, for tests and ephemeral deployments)
//   - file:///var/lib/keymaster/state/
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=custom.s3.com
//   - vault://vault.example.com:8200/secret/keymaster?tls=true&cert=/path/client.pem&key=/path/client.key
//
// # Replication
//
// ReplicatedStore writes every record to a primary store and a list of
// mirrors. Mirror writes are best effort, so reads are served by the primary
// alone; to recover from a mirror, configure it as the primary.
//
// # Usage
//
//	factory := storage.NewStateStoreFactory(logger)
//	store, err := factory.StateStoreFor("file:///var/lib/keymaster/state")
//	if err != nil {
//		return err
//	}
//	err = store.Save(ctx, "authtags.snapshot", data)
//
// # Error Handling
//
// Load returns interfaces.ErrRecordNotFound when a record does not exist.
// Backend failures are logged and wrapped with interfaces.ErrBackendUnavailable.
package storage
