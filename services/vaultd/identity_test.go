package vaultd

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestIdentityChangeHooks(t *testing.T) {
	identity := NewIdentity(common.Address{})
	fired := 0
	identity.OnChange(func() { fired++ })

	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	identity.Set(alice)
	if fired != 1 {
		t.Fatalf("expected 1 hook call after set, got %d", fired)
	}
	if addr, ok := identity.Current(); !ok || addr != alice {
		t.Fatalf("expected current %s, got %s (present=%t)", alice.Hex(), addr.Hex(), ok)
	}

	// Re-setting the same address is not a change.
	identity.Set(alice)
	if fired != 1 {
		t.Fatalf("expected no hook on identical set, got %d", fired)
	}

	identity.Set(bob)
	if fired != 2 {
		t.Fatalf("expected hook on address switch, got %d", fired)
	}

	identity.Clear()
	if fired != 3 {
		t.Fatalf("expected hook on clear, got %d", fired)
	}
	if _, ok := identity.Current(); ok {
		t.Fatal("expected no identity after clear")
	}

	// Clearing an already-empty identity is not a change.
	identity.Clear()
	if fired != 3 {
		t.Fatalf("expected no hook on redundant clear, got %d", fired)
	}
}

func TestIdentitySeeded(t *testing.T) {
	seed := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	identity := NewIdentity(seed)
	if addr, ok := identity.Current(); !ok || addr != seed {
		t.Fatalf("expected seeded identity %s, got %s (present=%t)", seed.Hex(), addr.Hex(), ok)
	}
}
