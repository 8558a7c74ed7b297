package body

import (
	"slices"
)

// Registry owns typed collections of bodies plus a monotonic id allocator.
// Accretion disk particles are kept in an arena keyed by owner id.
type Registry struct {
	nextID  int64
	version uint64

	byID    map[int64]*Body
	rocky   []*Body
	giants  []*Body
	stellar []*Body
	holes   []*Body
	disks   map[int64][]*Body
}

func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		byID:   make(map[int64]*Body),
		disks:  make(map[int64][]*Body),
	}
}

// NextID allocates a fresh id. Ids are never reused.
func (r *Registry) NextID() int64 {
	id := r.nextID
	r.nextID++
	return id
}

// Version changes whenever the set of registered bodies changes.
func (r *Registry) Version() uint64 { return r.version }

func (r *Registry) Len() int { return len(r.byID) }

func (r *Registry) Get(id int64) (*Body, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// Insert registers b, allocating an id when b.ID is zero. A body restored
// with an explicit id advances the allocator past it. Inserting a disk
// particle whose owner is not a registered black hole is a no-op and
// returns false.
func (r *Registry) Insert(b *Body) bool {
	if b.ID == 0 {
		b.ID = r.NextID()
	} else if b.ID >= r.nextID {
		r.nextID = b.ID + 1
	}
	if _, dup := r.byID[b.ID]; dup {
		return false
	}
	if b.Type == AccretionDiskParticle {
		owner, ok := r.byID[b.OwnerID]
		if !ok || owner.Type != BlackHole {
			return false
		}
		r.disks[b.OwnerID] = append(r.disks[b.OwnerID], b)
	} else {
		ptr := r.collection(b.Type)
		*ptr = append(*ptr, b)
	}
	r.byID[b.ID] = b
	r.version++
	return true
}

// Remove evicts the body with the given id. Removing a black hole drops its
// disk arena; the dropped particles are returned.
func (r *Registry) Remove(id int64) (removed *Body, orphans []*Body) {
	b, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	delete(r.byID, id)
	if b.Type == AccretionDiskParticle {
		r.disks[b.OwnerID] = deleteBody(r.disks[b.OwnerID], b)
		if len(r.disks[b.OwnerID]) == 0 {
			delete(r.disks, b.OwnerID)
		}
	} else {
		ptr := r.collection(b.Type)
		*ptr = deleteBody(*ptr, b)
	}
	if b.Type == BlackHole {
		orphans = r.disks[id]
		for _, p := range orphans {
			delete(r.byID, p.ID)
		}
		delete(r.disks, id)
	}
	r.version++
	return b, orphans
}

// Sweep evicts every body for which keep returns false and returns them.
// Disk arenas of evicted black holes go with them.
func (r *Registry) Sweep(keep func(*Body) bool) []*Body {
	var evicted []*Body
	for _, ptr := range []*[]*Body{&r.rocky, &r.giants, &r.stellar, &r.holes} {
		kept := (*ptr)[:0]
		for _, b := range *ptr {
			if keep(b) {
				kept = append(kept, b)
				continue
			}
			evicted = append(evicted, b)
			delete(r.byID, b.ID)
		}
		clear((*ptr)[len(kept):])
		*ptr = kept
	}
	for owner, particles := range r.disks {
		_, ownerAlive := r.byID[owner]
		kept := particles[:0]
		for _, p := range particles {
			if ownerAlive && keep(p) {
				kept = append(kept, p)
				continue
			}
			evicted = append(evicted, p)
			delete(r.byID, p.ID)
		}
		if len(kept) == 0 {
			delete(r.disks, owner)
		} else {
			r.disks[owner] = kept
		}
	}
	if len(evicted) > 0 {
		r.version++
	}
	return evicted
}

// Reparent moves every disk particle owned by from to the black hole to.
func (r *Registry) Reparent(from, to int64) int {
	particles := r.disks[from]
	if len(particles) == 0 || from == to {
		return 0
	}
	for _, p := range particles {
		p.OwnerID = to
	}
	r.disks[to] = append(r.disks[to], particles...)
	delete(r.disks, from)
	r.version++
	return len(particles)
}

func (r *Registry) Rocky() []*Body      { return slices.Clone(r.rocky) }
func (r *Registry) Giants() []*Body     { return slices.Clone(r.giants) }
func (r *Registry) Stellar() []*Body    { return slices.Clone(r.stellar) }
func (r *Registry) BlackHoles() []*Body { return slices.Clone(r.holes) }

func (r *Registry) Disk(owner int64) []*Body { return slices.Clone(r.disks[owner]) }

// DiskOwners returns owner ids that currently have particles, in ascending order.
func (r *Registry) DiskOwners() []int64 {
	owners := make([]int64, 0, len(r.disks))
	for id := range r.disks {
		owners = append(owners, id)
	}
	slices.Sort(owners)
	return owners
}

func (r *Registry) DiskCount() int {
	n := 0
	for _, p := range r.disks {
		n += len(p)
	}
	return n
}

// Bodies returns every non-particle body ordered by id.
func (r *Registry) Bodies() []*Body {
	out := make([]*Body, 0, len(r.rocky)+len(r.giants)+len(r.stellar)+len(r.holes))
	out = append(out, r.rocky...)
	out = append(out, r.giants...)
	out = append(out, r.stellar...)
	out = append(out, r.holes...)
	slices.SortFunc(out, byID)
	return out
}

// All returns every registered body, disk particles included, ordered by id.
func (r *Registry) All() []*Body {
	out := make([]*Body, 0, len(r.byID))
	for _, b := range r.byID {
		out = append(out, b)
	}
	slices.SortFunc(out, byID)
	return out
}

func (r *Registry) collection(t Type) *[]*Body {
	tr := t.Traits()
	switch {
	case tr.Rocky:
		return &r.rocky
	case tr.Giant:
		return &r.giants
	case t == BlackHole:
		return &r.holes
	default:
		return &r.stellar
	}
}

func deleteBody(list []*Body, b *Body) []*Body {
	i := slices.Index(list, b)
	if i < 0 {
		return list
	}
	return slices.Delete(list, i, i+1)
}

func byID(a, b *Body) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
