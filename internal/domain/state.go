// Package domain contains core domain types for the GeoChat client.
package domain

// ConnectionState represents the current state of the assistant connection.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being attempted.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connection attempt is in progress.
	StateConnecting

	// StateConnected means the streaming connection is established.
	StateConnected

	// StateReconnecting means the connection was lost and a retry is scheduled.
	StateReconnecting

	// StateExhausted means all retry attempts were consumed. Terminal until
	// an explicit reset.
	StateExhausted
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
