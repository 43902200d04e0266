// Package keymaster composes the state backbone of the keymaster: the scratch
// arena, the auth tag repository, the operation pool, the process-wide secrets
// and the boot parameters.
//
// A Context is created once at startup and handed to the command dispatcher.
// Each external request runs as one cycle:
//
//	err := km.Process(ctx, func(c *keymaster.Cycle) error {
//		blob, err := tlv.NewByteBlob(c.Arena(), appID)
//		if err != nil {
//			return err
//		}
//		if _, err := tlv.NewByteTag(c.Arena(), c.Policy(), tlv.KeyApplicationID, blob); err != nil {
//			return err
//		}
//		return c.AuthTags().Persist(c.Context(), tag)
//	})
//	sw := interfaces.StatusWord(err)
//
// Cycles are serialized. The arena is wiped when the cycle ends, whether fn
// returns normally, returns an error or panics, so no secret residue survives
// into the next cycle. Offsets and views into the arena must not be retained
// past the cycle that produced them.
//
// Secrets are set at most once: a later initialization of an already set
// secret is ignored. Boot parameters are set once by provisioning and are
// read-only afterwards. Teardown wipes everything and disables the context.
package keymaster
