package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionNavigate  Action = "navigate"
	ActionTick      Action = "tick"
	ActionIntegrity Action = "integrity"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestPayload is the single inbound message shape. Fields are used
// depending on the action; unknown actions produce an error event.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`   // answer
	Option *int   `json:"option,omitempty"` // answer
	Index  *int   `json:"index,omitempty"`  // navigate
	Signal string `json:"signal,omitempty"` // integrity
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventSaved        Event = "saved"
	EventState        Event = "state"
	EventWarning      Event = "warning"
	EventCompleted    Event = "completed"
	EventDisqualified Event = "disqualified"
	EventPong         Event = "pong"
)

// ResponsePayload wraps every outbound message with its event tag.
type ResponsePayload struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}
