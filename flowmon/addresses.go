package flowmon

import (
	"net/netip"
	"sort"

	"github.com/miretskiy/handovertrace/correlator"
)

type assignment struct {
	at     float64
	entity correlator.EntityID
}

// AddressBook records which entity holds which IP address over time. It
// implements correlator.AddressBook.
type AddressBook struct {
	byAddr map[netip.Addr][]assignment // sorted by at
}

// NewAddressBook creates an empty address book
func NewAddressBook() *AddressBook {
	return &AddressBook{byAddr: make(map[netip.Addr][]assignment)}
}

// Assign binds addr to entity from time at onwards. A later assignment of
// the same address replaces it.
func (b *AddressBook) Assign(entity correlator.EntityID, addr netip.Addr, at float64) {
	list := b.byAddr[addr]
	i := sort.Search(len(list), func(i int) bool { return list[i].at > at })
	list = append(list, assignment{})
	copy(list[i+1:], list[i:])
	list[i] = assignment{at: at, entity: entity}
	b.byAddr[addr] = list
}

// Assignments returns the bindings active at time t, ordered by address
func (b *AddressBook) Assignments(t float64) []correlator.AddressAssignment {
	out := make([]correlator.AddressAssignment, 0, len(b.byAddr))
	for addr, list := range b.byAddr {
		i := sort.Search(len(list), func(i int) bool { return list[i].at > t })
		if i == 0 {
			continue
		}
		out = append(out, correlator.AddressAssignment{Entity: list[i-1].entity, Addr: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr.Less(out[j].Addr) })
	return out
}

// Len returns the number of distinct addresses ever assigned
func (b *AddressBook) Len() int { return len(b.byAddr) }
