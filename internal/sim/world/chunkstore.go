package world

import (
	"sort"
)

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk holds a 16x16 column of blocks, Height layers tall.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height, x fastest, then z, then y

	dirty bool
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*16 + y*16*16
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

type WorldGen struct {
	Seed      int64
	Height    int
	BoundaryR int // blocks

	// Palette ids for generated blocks.
	Air     uint16
	Stone   uint16
	CoalOre uint16
	IronOre uint16
}

// ChunkStore is a sparse chunk map. Chunks materialize on first write and
// can be explicitly unloaded; reads in an unloaded region report absence
// instead of generating, so the simulation can tell "air" from "not here
// right now".
type ChunkStore struct {
	gen WorldGen
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	if gen.Height <= 0 {
		gen.Height = 64
	}
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func RegionOf(pos Vec3i) ChunkKey {
	return ChunkKey{CX: floorDiv(pos.X, 16), CZ: floorDiv(pos.Z, 16)}
}

func (s *ChunkStore) inBounds(pos Vec3i) bool {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if pos.X < -s.gen.BoundaryR || pos.X > s.gen.BoundaryR || pos.Z < -s.gen.BoundaryR || pos.Z > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) Loaded(pos Vec3i) bool {
	if !s.inBounds(pos) {
		return false
	}
	_, ok := s.chunks[RegionOf(pos)]
	return ok
}

func (s *ChunkStore) RegionLoaded(k ChunkKey) bool {
	_, ok := s.chunks[k]
	return ok
}

// GetBlock returns the block at pos, with ok=false when the position is
// out of bounds or its region is not currently loaded.
func (s *ChunkStore) GetBlock(pos Vec3i) (uint16, bool) {
	if !s.inBounds(pos) {
		return s.gen.Air, false
	}
	ch, ok := s.chunks[RegionOf(pos)]
	if !ok {
		return s.gen.Air, false
	}
	return ch.Get(mod(pos.X, 16), pos.Y, mod(pos.Z, 16)), true
}

// SetBlock writes pos, materializing (and generating) the region first if
// needed. Returns false when pos is out of bounds.
func (s *ChunkStore) SetBlock(pos Vec3i, b uint16) bool {
	if !s.inBounds(pos) {
		return false
	}
	ch := s.getOrGenChunk(RegionOf(pos))
	ch.Set(mod(pos.X, 16), pos.Y, mod(pos.Z, 16), b)
	return true
}

// LoadRegion materializes a region without writing to it.
func (s *ChunkStore) LoadRegion(k ChunkKey) {
	s.getOrGenChunk(k)
}

// UnloadRegion drops a region from memory. Subsequent reads inside it
// report absence until something loads it again.
func (s *ChunkStore) UnloadRegion(k ChunkKey) {
	delete(s.chunks, k)
}

func (s *ChunkStore) getOrGenChunk(k ChunkKey) *Chunk {
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     k.CX,
		CZ:     k.CZ,
		Height: s.gen.Height,
		Blocks: make([]uint16, 16*16*s.gen.Height),
	}
	s.generateChunk(ch)
	ch.dirty = true
	s.chunks[k] = ch
	return ch
}

// generateChunk sprinkles a thin deterministic ground layer; everything
// above it is air for machines and transport lines to occupy.
func (s *ChunkStore) generateChunk(ch *Chunk) {
	depth := 4
	if depth > ch.Height {
		depth = ch.Height
	}
	for y := 0; y < depth; y++ {
		for z := 0; z < 16; z++ {
			for x := 0; x < 16; x++ {
				wx := ch.CX*16 + x
				wz := ch.CZ*16 + z

				roll := hash3(s.gen.Seed, wx, y, wz) % 1000
				b := s.gen.Stone
				switch {
				case roll < 20:
					b = s.gen.IronOre
				case roll < 60:
					b = s.gen.CoalOre
				}
				ch.Blocks[ch.index(x, y, z)] = b
			}
		}
	}
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
