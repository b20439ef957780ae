package ros

import "github.com/go-ros/rosnode/wire"

// fakeMsg is a minimal TypedMessage used by internal tests that need
// a concrete message type without pulling in package msgs (which
// imports this package, and so cannot be imported from an internal
// ros test file without an import cycle).
type fakeMsg struct {
	Data string
}

func (m *fakeMsg) Serialize(b *wire.Builder) { b.Str(m.Data) }

func (m *fakeMsg) Deserialize(s *wire.Scanner) error {
	v, err := s.Str()
	if err != nil {
		return err
	}
	m.Data = v
	return nil
}

func (m *fakeMsg) Size() int { return 4 + len(m.Data) }

type fakeMsgType struct{}

func (fakeMsgType) MD5Sum() string             { return "fakemd5" }
func (fakeMsgType) DataType() string           { return "test_msgs/Fake" }
func (fakeMsgType) MessageDefinition() string  { return "string data\n" }
func (fakeMsgType) New() TypedMessage          { return &fakeMsg{} }

type fakeSvcType struct{}

func (fakeSvcType) MD5Sum() string           { return "fakesvcmd5" }
func (fakeSvcType) DataType() string         { return "test_msgs/FakeSvc" }
func (fakeSvcType) NewRequest() TypedMessage  { return &fakeMsg{} }
func (fakeSvcType) NewResponse() TypedMessage { return &fakeMsg{} }
