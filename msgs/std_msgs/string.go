// Package std_msgs provides hand-written fixtures for the std_msgs
// message package, standing in for the out-of-scope code generator's
// output (spec §1's "typed-message contract" collaborator).
package std_msgs

import (
	"github.com/go-ros/rosnode"
	"github.com/go-ros/rosnode/wire"
)

// String is the std_msgs/String message: a single variable-length
// string field.
type String struct {
	Data string
}

// Serialize implements ros.TypedMessage.
func (m *String) Serialize(b *wire.Builder) { b.Str(m.Data) }

// Deserialize implements ros.TypedMessage.
func (m *String) Deserialize(s *wire.Scanner) error {
	v, err := s.Str()
	if err != nil {
		return err
	}
	m.Data = v
	return nil
}

// Size implements ros.TypedMessage.
func (m *String) Size() int { return 4 + len(m.Data) }

// Type is the ros.MessageType for String.
type Type struct{}

// MD5Sum implements ros.MessageType.
func (Type) MD5Sum() string { return "992ce8a1687cec8c8bd883ec73ca41d1" }

// DataType implements ros.MessageType.
func (Type) DataType() string { return "std_msgs/String" }

// MessageDefinition implements ros.MessageType.
func (Type) MessageDefinition() string { return "string data\n" }

// New implements ros.MessageType.
func (Type) New() ros.TypedMessage { return &String{} }
