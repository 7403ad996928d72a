package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResourceTag identifies which transport family a block participates in.
type ResourceTag string

const (
	TagNone   ResourceTag = ""
	TagEnergy ResourceTag = "energy"
	TagItem   ResourceTag = "item"
)

// ConduitKind splits conduits into plain relays and dedicated
// single-polarity endpoints.
type ConduitKind string

const (
	ConduitNone   ConduitKind = ""
	ConduitPlain  ConduitKind = "plain"
	ConduitInput  ConduitKind = "input"
	ConduitOutput ConduitKind = "output"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	Caps          map[uint16]Caps
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID        string       `json:"id"`
	Solid     bool         `json:"solid"`
	Breakable bool         `json:"breakable"`
	Transport *TransportDef `json:"transport,omitempty"`
	Terminal  *TerminalDef  `json:"terminal,omitempty"`
}

type TransportDef struct {
	Tag  ResourceTag `json:"tag"`
	Kind ConduitKind `json:"kind"`
}

type TerminalDef struct {
	Tag          ResourceTag `json:"tag"`
	CanInput     bool        `json:"can_input"`
	CanOutput    bool        `json:"can_output"`
	IsStorage    bool        `json:"is_storage"`
	BasePriority int         `json:"base_priority"`
	Capacity     int64       `json:"capacity"`
	GenRate      int64       `json:"gen_rate,omitempty"`
	UseRate      int64       `json:"use_rate,omitempty"`
	ProducesItem string      `json:"produces_item,omitempty"`
}

// Caps is the structural capability set resolved once per palette id.
// Lookups during simulation go through this value, never back to the
// raw JSON defs.
type Caps struct {
	Tag         ResourceTag
	ConduitKind ConduitKind

	Terminal     bool
	CanInput     bool
	CanOutput    bool
	IsStorage    bool
	BasePriority int
	Capacity     int64
	GenRate      int64
	UseRate      int64
	ProducesItem string
}

func (c Caps) Conduit() bool   { return c.ConduitKind != ConduitNone }
func (c Caps) Dedicated() bool { return c.ConduitKind == ConduitInput || c.ConduitKind == ConduitOutput }

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(
		filepath.Join(configDir, "blocks.json"),
		filepath.Join(configDir, "schemas", "blocks.schema.json"),
		&c.Blocks,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path, schemaPath string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	if err := validateAgainstSchema(schemaPath, raw); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if d.Transport != nil && d.Terminal != nil {
			return fmt.Errorf("blocks.json: %s is both conduit and terminal", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)

	out.Caps = make(map[uint16]Caps, len(ids))
	for i, id := range ids {
		out.Caps[uint16(i)] = resolveCaps(out.Defs[id])
	}
	return nil
}

func resolveCaps(d BlockDef) Caps {
	var caps Caps
	if d.Transport != nil {
		caps.Tag = d.Transport.Tag
		caps.ConduitKind = d.Transport.Kind
	}
	if d.Terminal != nil {
		caps.Tag = d.Terminal.Tag
		caps.Terminal = true
		caps.CanInput = d.Terminal.CanInput
		caps.CanOutput = d.Terminal.CanOutput
		caps.IsStorage = d.Terminal.IsStorage
		caps.BasePriority = d.Terminal.BasePriority
		caps.Capacity = d.Terminal.Capacity
		caps.GenRate = d.Terminal.GenRate
		caps.UseRate = d.Terminal.UseRate
		caps.ProducesItem = d.Terminal.ProducesItem
	}
	return caps
}

func validateAgainstSchema(schemaPath string, raw []byte) error {
	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
