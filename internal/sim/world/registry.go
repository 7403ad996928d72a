package world

import (
	"fluxgrid.dev/internal/sim/catalogs"
)

// Registration is the scheduler's per-source bookkeeping entry.
type Registration struct {
	Pos            Vec3i
	Tag            catalogs.ResourceTag
	Region         ChunkKey
	RRIndex        int
	RegisteredTick uint64
	LastValidated  uint64
}

// Registry tracks the registered sources of one resource kind, in
// insertion order. It is an explicit value owned by the World; there is
// no process-global registry.
type Registry struct {
	tag     catalogs.ResourceTag
	order   []Vec3i
	entries map[Vec3i]*Registration
}

func tagFromString(s string) catalogs.ResourceTag {
	switch s {
	case string(catalogs.TagEnergy):
		return catalogs.TagEnergy
	case string(catalogs.TagItem):
		return catalogs.TagItem
	default:
		return catalogs.TagNone
	}
}

func NewRegistry(tag catalogs.ResourceTag) *Registry {
	return &Registry{
		tag:     tag,
		entries: map[Vec3i]*Registration{},
	}
}

func (r *Registry) Tag() catalogs.ResourceTag { return r.tag }
func (r *Registry) Len() int                  { return len(r.entries) }

func (r *Registry) Get(pos Vec3i) *Registration { return r.entries[pos] }

// Register adds a fresh entry, or returns the existing one.
func (r *Registry) Register(pos Vec3i, tick uint64) *Registration {
	if reg, ok := r.entries[pos]; ok {
		return reg
	}
	reg := &Registration{
		Pos:            pos,
		Tag:            r.tag,
		Region:         RegionOf(pos),
		RegisteredTick: tick,
	}
	r.entries[pos] = reg
	r.order = append(r.order, pos)
	return reg
}

// Restore re-attaches a previously persisted entry, keeping its
// round-robin index.
func (r *Registry) Restore(reg *Registration) {
	if _, ok := r.entries[reg.Pos]; ok {
		return
	}
	r.entries[reg.Pos] = reg
	r.order = append(r.order, reg.Pos)
}

func (r *Registry) Unregister(pos Vec3i) bool {
	if _, ok := r.entries[pos]; !ok {
		return false
	}
	delete(r.entries, pos)
	for i, p := range r.order {
		if p == pos {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Ordered snapshots the entries in registration order so a tick pass can
// unregister while iterating.
func (r *Registry) Ordered() []*Registration {
	out := make([]*Registration, 0, len(r.order))
	for _, pos := range r.order {
		if reg, ok := r.entries[pos]; ok {
			out = append(out, reg)
		}
	}
	return out
}
