package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Strob0t/Chorus/internal/domain"
)

func TestEnsureIdentityStable(t *testing.T) {
	prov := &fakeProvisioner{}
	svc := NewIdentityService(prov)
	ctx := context.Background()

	a, err := svc.EnsureIdentity(ctx, "GPT-4o Mini")
	if err != nil {
		t.Fatalf("EnsureIdentity: %v", err)
	}
	b, err := svc.EnsureIdentity(ctx, "gpt-4o  mini")
	if err != nil {
		t.Fatalf("EnsureIdentity: %v", err)
	}

	if a.PersonID != b.PersonID {
		t.Errorf("case/spacing variants minted different identities: %s vs %s", a.PersonID, b.PersonID)
	}
	if !strings.HasPrefix(a.PersonID, "ai-") {
		t.Errorf("person ID %q should carry the ai- prefix", a.PersonID)
	}
	if a.DisplayName != "gpt-4o-mini" {
		t.Errorf("display name = %q", a.DisplayName)
	}
	if prov.callCount() != 1 {
		t.Errorf("provisioned %d times, want 1", prov.callCount())
	}
}

func TestEnsureIdentityConcurrent(t *testing.T) {
	prov := &fakeProvisioner{}
	svc := NewIdentityService(prov)

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.EnsureIdentity(context.Background(), "claude-sonnet")
			if err != nil {
				t.Errorf("EnsureIdentity: %v", err)
				return
			}
			ids[i] = id.PersonID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("identity %d = %s, want %s", i, ids[i], ids[0])
		}
	}
	if prov.callCount() != 1 {
		t.Errorf("provisioned %d times under concurrency, want 1", prov.callCount())
	}
}

func TestEnsureIdentityProvisioningError(t *testing.T) {
	prov := &fakeProvisioner{err: errors.New("upstream down")}
	svc := NewIdentityService(prov)

	_, err := svc.EnsureIdentity(context.Background(), "gpt-4o")
	if err == nil {
		t.Fatal("expected provisioning error")
	}
	if !errors.Is(err, domain.ErrIdentityProvisioning) {
		t.Errorf("error %v should wrap ErrIdentityProvisioning", err)
	}
	if svc.Known("gpt-4o") {
		t.Error("failed provisioning must not cache the identity")
	}

	// Recovery: once the provisioner works the identity is cached.
	prov.err = nil
	if _, err := svc.EnsureIdentity(context.Background(), "gpt-4o"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if !svc.Known("gpt-4o") {
		t.Error("identity should be known after successful provisioning")
	}
	if got := len(svc.Identities()); got != 1 {
		t.Errorf("Identities() len = %d, want 1", got)
	}
}
