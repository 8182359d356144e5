package spanz

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Callsite is a single instrumentation site in producer code. It owns a
// stable, process-wide identity and the field schema shared by every
// span or event it produces. The installed collector's interest in the
// callsite is cached here so the hot path never re-queries it.
type Callsite struct {
	meta *Metadata
	// interest holds the cached Interest biased by one; zero means
	// the callsite has not been registered yet.
	interest   atomic.Uint32
	registered atomic.Bool
}

// NewCallsite constructs a callsite with its metadata and field schema.
// The returned callsite is not yet registered; registration happens
// lazily on the first Interest query, or eagerly via Register.
func NewCallsite(name, target string, level Level, kind Kind, fieldNames ...string) *Callsite {
	cs := &Callsite{}
	cs.meta = &Metadata{
		Name:   name,
		Target: target,
		Level:  level,
		Kind:   kind,
		Fields: NewFieldSet(Identifier{cs}, fieldNames...),
	}
	return cs
}

// Metadata returns the callsite's metadata.
func (c *Callsite) Metadata() *Metadata { return c.meta }

// ID returns the callsite's process-wide identity.
func (c *Callsite) ID() Identifier { return Identifier{c} }

// Interest returns the installed collector's cached decision for this
// callsite, registering the callsite first if needed.
func (c *Callsite) Interest() Interest {
	if v := c.interest.Load(); v != 0 {
		return Interest(v - 1)
	}
	return Register(c)
}

// Identifier is a comparable, hashable identity for one callsite. Two
// identifiers are equal only if they refer to the same callsite; it is
// usable directly as a map key.
type Identifier struct {
	c *Callsite
}

// Valid reports whether the identifier refers to a callsite.
func (i Identifier) Valid() bool { return i.c != nil }

// String renders the identifier for diagnostics.
func (i Identifier) String() string {
	if i.c == nil {
		return "callsite(invalid)"
	}
	return fmt.Sprintf("callsite(%s @ %p)", i.c.meta.Name, i.c)
}

var callsites struct {
	mu    sync.Mutex
	sites []*Callsite
}

// Register adds the callsite to the process-wide registry, asks the
// installed collector for its interest, and caches the decision on the
// callsite. Registering an already-registered callsite refreshes the
// cached interest without duplicating the registry entry.
func Register(c *Callsite) Interest {
	if c.registered.CompareAndSwap(false, true) {
		callsites.mu.Lock()
		callsites.sites = append(callsites.sites, c)
		callsites.mu.Unlock()
	}
	interest := Dispatch().RegisterCallsite(c.meta)
	c.interest.Store(uint32(interest) + 1)
	return interest
}

// reregisterCallsites refreshes every registered callsite's cached
// interest. Called when a new collector is installed.
func reregisterCallsites() {
	callsites.mu.Lock()
	sites := make([]*Callsite, len(callsites.sites))
	copy(sites, callsites.sites)
	callsites.mu.Unlock()

	for _, c := range sites {
		interest := Dispatch().RegisterCallsite(c.meta)
		c.interest.Store(uint32(interest) + 1)
	}
}
