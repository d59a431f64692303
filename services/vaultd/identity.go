package vaultd

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Identity supplies the current participant address. It can change at any
// time; keyed queries gate on presence and re-derive on change.
type Identity struct {
	mu       sync.Mutex
	addr     common.Address
	has      bool
	onChange []func()
}

// NewIdentity constructs an identity store, optionally seeded.
func NewIdentity(addr common.Address) *Identity {
	id := &Identity{}
	if (addr != common.Address{}) {
		id.addr = addr
		id.has = true
	}
	return id
}

// Current returns the participant address, or false when unauthenticated.
func (i *Identity) Current() (common.Address, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.addr, i.has
}

// Set installs a new participant address and fires change hooks.
func (i *Identity) Set(addr common.Address) {
	has := (addr != common.Address{})
	i.mu.Lock()
	changed := i.has != has || i.addr != addr
	i.addr = addr
	i.has = has
	hooks := i.onChange
	i.mu.Unlock()
	if changed {
		for _, hook := range hooks {
			hook()
		}
	}
}

// Clear removes the participant address and fires change hooks.
func (i *Identity) Clear() {
	i.Set(common.Address{})
}

// OnChange registers a hook invoked after the address changes.
func (i *Identity) OnChange(hook func()) {
	if hook == nil {
		return
	}
	i.mu.Lock()
	i.onChange = append(i.onChange, hook)
	i.mu.Unlock()
}
