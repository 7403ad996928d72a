package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ObserverName    string `json:"observer_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ObserverID      string      `json:"observer_id"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    DigestRef   `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz          int   `json:"tick_rate_hz"`
	Height              int   `json:"height"`
	Seed                int64 `json:"seed"`
	NetworkMaxTerminals int   `json:"network_max_terminals"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ACT (client -> server): mutate the grid. Applied on the next tick.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Op              string `json:"op"` // "PLACE" | "BREAK"
	Pos             [3]int `json:"pos"`
	Block           string `json:"block,omitempty"` // PLACE only
}

// ACT_RESULT (server -> client)
type ActResultMsg struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Tick      uint64 `json:"tick"`
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// QUERY_CONN (client -> server): six-direction link state for a cell.
type QueryConnMsg struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Pos  [3]int `json:"pos"`
}

// CONN_INFO (server -> client)
type ConnInfoMsg struct {
	Type    string    `json:"type"`
	ID      string    `json:"id,omitempty"`
	Tick    uint64    `json:"tick"`
	Pos     [3]int    `json:"pos"`
	Block   string    `json:"block"`
	Links   [6]string `json:"links"` // per direction: "none"|"conduit"|"terminal"
	Pattern string    `json:"pattern"`
}

// QUERY_NETWORK (client -> server): discover from a seed and summarize.
type QueryNetworkMsg struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Pos  [3]int `json:"pos"`
}

// NETWORK_INFO (server -> client)
type NetworkInfoMsg struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	Tick      uint64            `json:"tick"`
	Seed      [3]int            `json:"seed"`
	Truncated bool              `json:"truncated"`
	Terminals []NetworkTerminal `json:"terminals"`
}

type NetworkTerminal struct {
	Pos       [3]int `json:"pos"`
	Block     string `json:"block"`
	CanInput  bool   `json:"can_input"`
	CanOutput bool   `json:"can_output"`
	IsStorage bool   `json:"is_storage"`
	Amount    int64  `json:"amount"`
	Capacity  int64  `json:"capacity"`
}

// MOVE (client -> server): a mobile agent reports its position so the
// scheduler can opportunistically reclaim parked registrations nearby.
type MoveMsg struct {
	Type string `json:"type"`
	Pos  [3]int `json:"pos"`
}

// TICK_STATUS (server -> client): periodic world heartbeat.
type TickStatusMsg struct {
	Type          string `json:"type"`
	Tick          uint64 `json:"tick"`
	EnergySources int    `json:"energy_sources"`
	ItemSources   int    `json:"item_sources"`
	EnergyMoved   int64  `json:"energy_moved"`
	ItemsMoved    int64  `json:"items_moved"`
	Digest        string `json:"digest"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}
