package ros

import (
	"log"
	"net"

	"github.com/go-ros/rosnode/wire"
)

// acceptPeers is the peer protocol accept loop described in spec
// §4: it reads the inbound connection header and hands the connection
// to the publisher (subscriber inbound) or service server (client
// inbound) that owns the named topic or service. It runs until the
// listener is closed at shutdown.
func (n *Node) acceptPeers() error {
	for {
		conn, err := n.peerLn.Accept()
		if err != nil {
			return nil // listener closed; normal shutdown path
		}
		go n.handlePeerConn(conn)
	}
}

func (n *Node) handlePeerConn(conn net.Conn) {
	header, err := readHeader(conn)
	if err != nil {
		log.Printf("ros: peer %s: read header: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	switch {
	case header.Has(wire.KeyTopic):
		topic, _ := header.Get(wire.KeyTopic)
		n.mu.Lock()
		pub := n.publishers[topic]
		n.mu.Unlock()
		if pub == nil {
			sendHeader(conn, errorHeader("no such publisher: "+topic))
			conn.Close()
			return
		}
		pub.acceptSubscriber(conn, header)

	case header.Has(wire.KeyService):
		service, _ := header.Get(wire.KeyService)
		n.mu.Lock()
		srv := n.serviceServers[service]
		n.mu.Unlock()
		if srv == nil {
			sendHeader(conn, errorHeader("no such service: "+service))
			conn.Close()
			return
		}
		srv.acceptClient(conn, header)

	default:
		sendHeader(conn, errorHeader("header carries neither topic nor service"))
		conn.Close()
	}
}

func errorHeader(msg string) *wire.Header {
	h := wire.NewHeader()
	h.Set(wire.KeyError, msg)
	return h
}
