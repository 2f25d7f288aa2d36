package main

import (
	"context"
	"testing"

	"pinbin/pkg/secrets"
	"pinbin/svc/auth"
	"pinbin/svc/db"
)

func newSeedFixture(t *testing.T) (*db.Memory, *secrets.Adapter) {
	t.Helper()
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("SEED_PASSWORD_ROOT", "pw-root-seed")
	hasher, err := auth.NewHasher(1, 8*1024, 1)
	if err != nil {
		t.Fatal(err)
	}
	store := db.NewMemory(hasher)
	adapter, err := secrets.NewAdapter(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return store, adapter
}

func TestSeedAdminsCreatesAdmin(t *testing.T) {
	store, adapter := newSeedFixture(t)
	ctx := context.Background()

	if err := seedAdmins(ctx, store, adapter, []string{"root"}); err != nil {
		t.Fatal(err)
	}
	u, err := store.GetUserByUsername(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsAdmin {
		t.Error("seeded account must be admin")
	}

	// A second boot with the same list is a no-op.
	if err := seedAdmins(ctx, store, adapter, []string{"root"}); err != nil {
		t.Fatal(err)
	}
}

// An account created under the seed username but never promoted, as after a
// crash between create and promote, must be promoted on the next boot.
func TestSeedAdminsRepairsUnpromotedAccount(t *testing.T) {
	store, adapter := newSeedFixture(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "root", "pw-root-seed"); err != nil {
		t.Fatal(err)
	}
	if err := seedAdmins(ctx, store, adapter, []string{"root"}); err != nil {
		t.Fatal(err)
	}
	u, err := store.GetUserByUsername(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsAdmin {
		t.Error("existing seed account must be promoted to admin")
	}
}

func TestSeedAdminsMissingPassword(t *testing.T) {
	store, adapter := newSeedFixture(t)

	if err := seedAdmins(context.Background(), store, adapter, []string{"other"}); err == nil {
		t.Error("expected error for seed user with no configured password")
	}
}
