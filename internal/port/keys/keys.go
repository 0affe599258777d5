// Package keys defines the identity provider port (interface).
package keys

import "context"

// Provisioner provisions cryptographic material for synthetic identities.
// EnsureKeys is idempotent on the provider side; callers still avoid
// redundant calls for the same person.
type Provisioner interface {
	EnsureKeys(ctx context.Context, personID string) error
}
