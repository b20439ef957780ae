package ros

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/go-ros/rosnode/frame"
	"github.com/go-ros/rosnode/spinner"
	"github.com/go-ros/rosnode/wire"
)

// PublisherState enumerates a publisher's lifecycle per spec §4.6.
type PublisherState int

const (
	PublisherUnregistered PublisherState = iota
	PublisherRegistering
	PublisherReady
	PublisherShutdown
)

// PublisherOptions configures Advertise.
type PublisherOptions struct {
	Latching   bool
	TCPNoDelay bool
	QueueSize  int // spinner queue bound; ignored if ThrottleMs < 0
	ThrottleMs int // < 0 bypasses the spinner and writes synchronously
}

type subConn struct {
	conn net.Conn
	fr   *frame.Framer
}

// A Publisher owns the set of subscriber sockets accepted for one
// topic and fans out serialized messages to them, per spec §4.6.
type Publisher struct {
	node  *Node
	id    spinner.Id
	topic string
	mtype MessageType
	opts  PublisherOptions
	obs   Observer

	mu       sync.Mutex
	state    PublisherState
	subs     map[net.Conn]*subConn
	lastSent []byte
}

// Advertise registers topic with the master and returns a ready
// Publisher, per spec §4.6 and §4.10 ("publishers advertise
// tcp://host:port and the slave URI").
func (n *Node) Advertise(ctx context.Context, topic string, mtype MessageType, opts PublisherOptions) (*Publisher, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, errShuttingDown
	}
	if _, exists := n.publishers[topic]; exists {
		n.mu.Unlock()
		return nil, fmt.Errorf("ros: topic %s already advertised by this node", topic)
	}
	n.mu.Unlock()

	p := &Publisher{
		node:  n,
		id:    spinner.Id("pub:" + topic),
		topic: topic,
		mtype: mtype,
		opts:  opts,
		state: PublisherRegistering,
		subs:  make(map[net.Conn]*subConn),
	}

	host, port := n.peerAddr()
	res, err := n.callMaster(ctx, "registerPublisher", n.name, topic, mtype.DataType(), fmtTCPURI(host, port), n.SlaveURI())
	if err != nil {
		return nil, fmt.Errorf("ros: registerPublisher: %w", err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.state = PublisherReady
	p.mu.Unlock()

	if opts.ThrottleMs >= 0 {
		n.spin.Register(p.id, maxInt(opts.QueueSize, 1), opts.ThrottleMs, p.deliverBatch)
	}

	n.mu.Lock()
	n.publishers[topic] = p
	n.mu.Unlock()
	metricPublishersActive.Add(1)
	p.notify(EventRegistered, topic)
	return p, nil
}

// SetObserver installs an Observer notified of registered, connection,
// and disconnect events (spec §9).
func (p *Publisher) SetObserver(o Observer) { p.obs = o }

func (p *Publisher) notify(event, detail string) {
	if p.obs != nil {
		p.obs.OnEvent(event, detail)
	}
}

// Publish serializes msg and fans it out to every connected
// subscriber, either synchronously or through the spinner, per spec
// §4.4's throttle semantics and §4.6's "serialize once per batch".
func (p *Publisher) Publish(msg TypedMessage) error {
	var b wire.Builder
	msg.Serialize(&b)
	payload := b.Bytes()

	if p.opts.ThrottleMs < 0 {
		p.broadcast(payload)
		return nil
	}
	p.node.spin.Push(p.id, payload)
	return nil
}

// deliverBatch is the spinner's Deliverer callback: it broadcasts every
// message in the batch to each subscriber, in order. Drop semantics for
// an overfull queue apply upstream of delivery, at the spinner's queue.
func (p *Publisher) deliverBatch(batch [][]byte) {
	for _, payload := range batch {
		p.broadcast(payload)
	}
}

func (p *Publisher) broadcast(payload []byte) {
	p.mu.Lock()
	p.lastSent = payload
	subs := make([]*subConn, 0, len(p.subs))
	for _, sc := range p.subs {
		subs = append(subs, sc)
	}
	p.mu.Unlock()
	metricMessagesPublished.Add(1)

	for _, sc := range subs {
		if err := sc.fr.Send(payload); err != nil {
			log.Printf("ros: publisher %s: write to subscriber %s: %v", p.topic, sc.conn.RemoteAddr(), err)
			p.removeSub(sc.conn)
		}
	}
}

// acceptSubscriber validates an inbound subscriber connection header,
// replies, and adds the connection to the subscriber set, per spec
// §4.2's validation rule and §4.6.
func (p *Publisher) acceptSubscriber(conn net.Conn, header *wire.Header) {
	if missing := header.RequireFields(wire.KeyCallerID, wire.KeyMD5Sum, wire.KeyTopic, wire.KeyType); missing != "" {
		sendHeader(conn, errorHeader("missing required field: "+missing))
		conn.Close()
		return
	}
	if topic, _ := header.Get(wire.KeyTopic); topic != p.topic {
		sendHeader(conn, errorHeader("topic mismatch"))
		conn.Close()
		return
	}
	if !md5Compatible(header, p.mtype.MD5Sum()) {
		sendHeader(conn, errorHeader("md5sum mismatch"))
		conn.Close()
		return
	}

	resp := wire.NewHeader()
	resp.Set(wire.KeyCallerID, p.node.name)
	resp.Set(wire.KeyMD5Sum, p.mtype.MD5Sum())
	resp.Set(wire.KeyType, p.mtype.DataType())
	resp.Set(wire.KeyLatching, boolStr(p.opts.Latching))
	if err := sendHeader(conn, resp); err != nil {
		conn.Close()
		return
	}

	if tc, ok := conn.(*net.TCPConn); ok && p.opts.TCPNoDelay {
		tc.SetNoDelay(true)
	}

	sc := &subConn{conn: conn, fr: frame.New(conn, conn)}
	p.mu.Lock()
	p.subs[conn] = sc
	latched, last := p.opts.Latching, p.lastSent
	p.mu.Unlock()
	p.notify(EventConnection, conn.RemoteAddr().String())

	if latched && last != nil {
		if err := sc.fr.Send(last); err != nil {
			p.removeSub(conn)
			return
		}
	}

	// The publisher side of a topic connection never reads further
	// frames from the subscriber; it only notices the socket going
	// away.
	go func() {
		buf := make([]byte, 1)
		conn.SetReadDeadline(zeroTime)
		_, err := conn.Read(buf)
		_ = err
		p.removeSub(conn)
	}()
}

func (p *Publisher) removeSub(conn net.Conn) {
	p.mu.Lock()
	_, existed := p.subs[conn]
	delete(p.subs, conn)
	p.mu.Unlock()
	if existed {
		conn.Close()
		p.notify(EventDisconnect, conn.RemoteAddr().String())
	}
}

// unadvertise tears the publisher down: best-effort unregistration
// (spec §4.6's "single attempt via master client queue"), closing
// every subscriber socket.
func (p *Publisher) unadvertise(ctx context.Context) {
	p.mu.Lock()
	if p.state == PublisherShutdown {
		p.mu.Unlock()
		return
	}
	p.state = PublisherShutdown
	subs := make([]*subConn, 0, len(p.subs))
	for _, sc := range p.subs {
		subs = append(subs, sc)
	}
	p.subs = nil
	p.mu.Unlock()

	host, port := p.node.peerAddr()
	p.node.callMaster(ctx, "unregisterPublisher", p.node.name, p.topic, fmtTCPURI(host, port))

	p.node.spin.Deregister(p.id)
	for _, sc := range subs {
		sc.conn.Close()
	}

	p.node.mu.Lock()
	delete(p.node.publishers, p.topic)
	p.node.mu.Unlock()
	metricPublishersActive.Add(-1)
}

// Unadvertise tears the publisher down explicitly (vs. at node
// shutdown).
func (p *Publisher) Unadvertise(ctx context.Context) { p.unadvertise(ctx) }
