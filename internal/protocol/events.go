package protocol

// RelayCompleted is published once per finished relay call. It carries no
// prompt text and no audio.
type RelayCompleted struct {
	Endpoint  string `json:"endpoint"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id"`
	Model     string `json:"model,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Cached    bool   `json:"cached"`
}

const (
	SubjectRelayCompleted = "coach.relay.completed"
	SubjectRelayWildcard  = "coach.relay.>"

	// StreamRelayEvents retains relay events when JetStream is available.
	StreamRelayEvents = "COACH_RELAY"

	EventTypeRelayCompleted = "com.loqalabs.musclecoach.relay.completed"
)
