package ir

// Version constants for the wire format and the service.
const (
	// WireVersion is the portable node schema version.
	WireVersion = "1"

	// ServiceVersion is the remoteq service version.
	ServiceVersion = "0.1.0"
)
