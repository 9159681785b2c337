package storage

import "estate-agent/web/types"

// IdentityKey is where the current sign-in state lives in the durable store.
const IdentityKey = "identity/current"

// SessionsKey derives the storage key holding an identity's session list.
// The zero identity has no storage home and maps to ""; callers treat an
// empty key as "do not persist".
func SessionsKey(id types.Identity) string {
	if id.IsZero() {
		return ""
	}
	return "sessions/" + id.ID
}
