package syncer

// State is the connection lifecycle as the rest of the client sees it.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"

	// StateGaveUp is terminal: the reconnect ceiling was reached and the
	// user must restart the client to resync.
	StateGaveUp State = "gave_up"
)
