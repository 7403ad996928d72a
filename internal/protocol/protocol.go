package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello        = "HELLO"
	TypeWelcome      = "WELCOME"
	TypeAct          = "ACT"
	TypeActResult    = "ACT_RESULT"
	TypeQueryConn    = "QUERY_CONN"
	TypeConnInfo     = "CONN_INFO"
	TypeQueryNetwork = "QUERY_NETWORK"
	TypeNetworkInfo  = "NETWORK_INFO"
	TypeMove         = "MOVE"
	TypeTickStatus   = "TICK_STATUS"
	TypeError        = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
