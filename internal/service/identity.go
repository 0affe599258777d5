package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/identity"
	"github.com/Strob0t/Chorus/internal/port/keys"
)

// IdentityService maps model identifiers to stable synthetic participant
// identities and provisions their key material exactly once per identity.
// The person ID is a pure function of the model ID, so repeated or concurrent
// lookups can never mint two different identities.
type IdentityService struct {
	provisioner keys.Provisioner

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]identity.ModelIdentity // person ID -> identity
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(provisioner keys.Provisioner) *IdentityService {
	return &IdentityService{
		provisioner: provisioner,
		cache:       make(map[string]identity.ModelIdentity),
	}
}

// EnsureIdentity resolves the synthetic identity for a model, provisioning
// keys on first use. Concurrent calls for the same model collapse into a
// single provisioning request via singleflight.
func (s *IdentityService) EnsureIdentity(ctx context.Context, modelID string) (identity.ModelIdentity, error) {
	id := identity.For(modelID)

	s.mu.RLock()
	cached, ok := s.cache[id.PersonID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(id.PersonID, func() (any, error) {
		// Re-check under the flight: a previous caller may have finished
		// between the cache miss and this closure running.
		s.mu.RLock()
		cached, ok := s.cache[id.PersonID]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		if err := s.provisioner.EnsureKeys(ctx, id.PersonID); err != nil {
			return nil, fmt.Errorf("ensure keys for %s: %w: %w", id.PersonID, domain.ErrIdentityProvisioning, err)
		}

		s.mu.Lock()
		s.cache[id.PersonID] = id
		s.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return identity.ModelIdentity{}, err
	}
	return v.(identity.ModelIdentity), nil
}

// Known reports whether an identity has already been provisioned for a model.
func (s *IdentityService) Known(modelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.cache[identity.SyntheticPersonID(modelID)]
	return ok
}

// Identities returns a snapshot of all provisioned identities.
func (s *IdentityService) Identities() []identity.ModelIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]identity.ModelIdentity, 0, len(s.cache))
	for _, id := range s.cache {
		out = append(out, id)
	}
	return out
}
