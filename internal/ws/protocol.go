package ws

import "encoding/json"

// Envelope is the wire frame both directions: a path naming the operation
// and an operation-specific payload.
type Envelope struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Path string `json:"path"`
	Data any    `json:"data"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InitData binds a connection to an instance and a user identity. The user
// object is trusted as supplied.
type InitData struct {
	Instance string `json:"instance"`
	User     User   `json:"user"`
	Deck     string `json:"deck"`
	Debug    bool   `json:"debug"`
}
