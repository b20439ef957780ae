package ros

import "github.com/go-ros/rosnode/wire"

// A TypedMessage is a concrete message value that knows how to
// serialize and deserialize itself in the wire codec's format (spec
// §4.1, §6). Implementations are produced by the out-of-scope
// code generator in a full deployment; package msgs supplies
// hand-written examples for testing this core.
type TypedMessage interface {
	// Serialize appends the wire encoding of the receiver to b.
	Serialize(b *wire.Builder)
	// Deserialize populates the receiver by consuming from s.
	Deserialize(s *wire.Scanner) error
	// Size reports the exact number of bytes Serialize will write.
	Size() int
}

// A MessageType describes a message schema: its wire fingerprint,
// fully qualified name, and schema text, plus a factory for empty
// values of the type. This corresponds to the typed-message
// collaborator contract in spec §6, split into per-value
// (TypedMessage) and per-type (MessageType) halves because md5sum and
// datatype are properties of the schema, not of any one value.
type MessageType interface {
	// MD5Sum returns the message schema's fingerprint as a hex string.
	MD5Sum() string
	// DataType returns the fully qualified message type, "pkg/Name".
	DataType() string
	// MessageDefinition returns the full .msg schema text.
	MessageDefinition() string
	// New returns a new, zero-valued message of this type.
	New() TypedMessage
}

// A ServiceType describes a request/response pair and their joint
// fingerprint (spec §3: "md5 is computed over request+response
// concatenation with no separator").
type ServiceType interface {
	// MD5Sum returns the joint request+response fingerprint.
	MD5Sum() string
	// DataType returns the fully qualified service type, "pkg/Name".
	DataType() string
	// NewRequest returns a new, zero-valued request message.
	NewRequest() TypedMessage
	// NewResponse returns a new, zero-valued response message.
	NewResponse() TypedMessage
}

// A ServiceHandler processes one request and returns a response value
// or an error. A non-nil error becomes a failure response carrying the
// error's message text (spec §4.8, §7 taxonomy item 4).
type ServiceHandler func(req TypedMessage) (TypedMessage, error)

// Events emitted externally by publishers and subscribers, per the
// design note in spec §9: "Event names used externally are:
// registered, connection, disconnect."
const (
	EventRegistered = "registered"
	EventConnection = "connection"
	EventDisconnect = "disconnect"
)

// An Observer receives event notifications from a publisher,
// subscriber, or service server. Passing a nil Observer to SetObserver
// disables notification.
type Observer interface {
	OnEvent(event string, detail string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event, detail string)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(event, detail string) { f(event, detail) }
