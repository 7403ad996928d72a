package world

// Vec3i is the primary key for every spatial map in the simulation.
type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Add(o Vec3i) Vec3i {
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func Manhattan(a, b Vec3i) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y) + abs(a.Z-b.Z)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Dir indexes the six axis-aligned neighbor directions. Opposite pairs
// share all bits but the lowest, so Opposite is d^1.
type Dir uint8

const (
	DirEast  Dir = iota // +X
	DirWest             // -X
	DirUp               // +Y
	DirDown             // -Y
	DirSouth            // +Z
	DirNorth            // -Z

	DirCount = 6
)

var dirOffsets = [DirCount]Vec3i{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

func (d Dir) Offset() Vec3i { return dirOffsets[d] }
func (d Dir) Opposite() Dir { return d ^ 1 }

func (d Dir) String() string {
	switch d {
	case DirEast:
		return "east"
	case DirWest:
		return "west"
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirSouth:
		return "south"
	default:
		return "north"
	}
}

func neighborPos(p Vec3i, d Dir) Vec3i { return p.Add(dirOffsets[d]) }
