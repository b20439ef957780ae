package ros

import (
	"io"
	"net"
	"testing"

	"github.com/go-ros/rosnode/frame"
	"github.com/go-ros/rosnode/spinner"
)

func newTestSubscriber(topic string) *Subscriber {
	return &Subscriber{
		node:     &Node{name: "/listener"},
		id:       spinner.Id("sub:" + topic),
		topic:    topic,
		mtype:    fakeMsgType{},
		conns:    make(map[string]*pubConn),
		deadURIs: make(map[string]bool),
	}
}

func TestPublisherUpdateClosesRemovedURI(t *testing.T) {
	s := newTestSubscriber("/chatter")

	peer, mine := net.Pipe()
	s.conns["tcp://u1/"] = &pubConn{uri: "tcp://u1/", conn: mine, fr: frame.New(mine, mine)}

	s.publisherUpdate([]string{"tcp://u2-unreachable/"})

	if _, ok := s.conns["tcp://u1/"]; ok {
		t.Fatal("expected tcp://u1/ to be removed from the connection map")
	}

	buf := make([]byte, 1)
	if _, err := peer.Read(buf); err != io.EOF {
		t.Fatalf("expected io.EOF after the subscriber closed the connection, got %v", err)
	}
}

func TestPublisherUpdateKeepsRetainedURI(t *testing.T) {
	s := newTestSubscriber("/chatter")

	_, mine := net.Pipe()
	s.conns["tcp://u1/"] = &pubConn{uri: "tcp://u1/", conn: mine, fr: frame.New(mine, mine)}

	s.publisherUpdate([]string{"tcp://u1/", "tcp://u2-unreachable/"})

	if _, ok := s.conns["tcp://u1/"]; !ok {
		t.Fatal("expected tcp://u1/ to remain connected")
	}
	mine.Close()
}
