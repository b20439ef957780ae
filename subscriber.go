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
	"github.com/go-ros/rosnode/xmlrpc"
)

// SubscriberOptions configures Subscribe.
type SubscriberOptions struct {
	QueueSize  int
	ThrottleMs int // < 0 dispatches synchronously, bypassing the spinner
}

// Callback receives one fully deserialized typed message.
type Callback func(msg TypedMessage)

type pubConn struct {
	uri  string
	conn net.Conn
	fr   *frame.Framer
}

// A Subscriber discovers publishers for one topic through the
// master, opens and reconciles peer connections to them, and delivers
// deserialized messages to a user callback, per spec §4.7.
type Subscriber struct {
	node  *Node
	id    spinner.Id
	topic string
	mtype MessageType
	opts  SubscriberOptions
	cb    Callback
	obs   Observer

	mu       sync.Mutex
	closed   bool
	conns    map[string]*pubConn // by publisher URI
	deadURIs map[string]bool     // got error= from this URI; wait for next publisherUpdate
}

// Subscribe registers topic with the master, connects to the
// publishers the master reports, and begins delivering messages to cb,
// per spec §4.7.
func (n *Node) Subscribe(ctx context.Context, topic string, mtype MessageType, cb Callback, opts SubscriberOptions) (*Subscriber, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, errShuttingDown
	}
	if _, exists := n.subscribers[topic]; exists {
		n.mu.Unlock()
		return nil, fmt.Errorf("ros: topic %s already subscribed by this node", topic)
	}
	n.mu.Unlock()

	s := &Subscriber{
		node:     n,
		id:       spinner.Id("sub:" + topic),
		topic:    topic,
		mtype:    mtype,
		opts:     opts,
		cb:       cb,
		conns:    make(map[string]*pubConn),
		deadURIs: make(map[string]bool),
	}

	res, err := n.callMaster(ctx, "registerSubscriber", n.name, topic, mtype.DataType(), n.SlaveURI())
	if err != nil {
		return nil, fmt.Errorf("ros: registerSubscriber: %w", err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	if opts.ThrottleMs >= 0 {
		n.spin.Register(s.id, maxInt(opts.QueueSize, 1), opts.ThrottleMs, s.deliverBatch)
	}

	n.mu.Lock()
	n.subscribers[topic] = s
	n.mu.Unlock()
	metricSubscribersActive.Add(1)
	s.notify(EventRegistered, topic)

	uris, _ := res.Value.([]xmlrpc.Value)
	for _, u := range uris {
		if uri, ok := u.(string); ok {
			go s.connect(uri)
		}
	}
	return s, nil
}

// SetObserver installs an Observer notified of registered, connection,
// and disconnect events (spec §9).
func (s *Subscriber) SetObserver(o Observer) { s.obs = o }

func (s *Subscriber) notify(event, detail string) {
	if s.obs != nil {
		s.obs.OnEvent(event, detail)
	}
}

// publisherUpdate reconciles the subscriber's connections against a
// new set of publisher URIs, per spec §4.7/§4.10 and the scenario in
// spec §8 item 6.
func (s *Subscriber) publisherUpdate(uris []string) {
	want := make(map[string]bool, len(uris))
	for _, u := range uris {
		want[u] = true
	}

	s.mu.Lock()
	var toClose []*pubConn
	for uri, pc := range s.conns {
		if !want[uri] {
			toClose = append(toClose, pc)
			delete(s.conns, uri)
		}
	}
	var toConnect []string
	for uri := range want {
		if _, have := s.conns[uri]; !have {
			toConnect = append(toConnect, uri)
			delete(s.deadURIs, uri)
		}
	}
	s.mu.Unlock()

	for _, pc := range toClose {
		pc.conn.Close()
		s.notify(EventDisconnect, pc.uri)
	}
	for _, uri := range toConnect {
		go s.connect(uri)
	}
}

// connect resolves pubURI's advertised TCP endpoint via that
// publisher's slave API requestTopic RPC, then opens and validates a
// peer connection, per spec §4.7/§4.10.
func (s *Subscriber) connect(pubURI string) {
	httpClient := xmlrpc.DefaultClient
	res, err := xmlrpc.Do(context.Background(), httpClient, pubURI, xmlrpc.Call{
		Method: "requestTopic",
		Params: []xmlrpc.Value{s.node.name, s.topic, []xmlrpc.Value{[]xmlrpc.Value{"TCPROS"}}},
	})
	if err != nil || !res.Ok() {
		log.Printf("ros: subscriber %s: requestTopic %s: %v", s.topic, pubURI, err)
		return
	}
	proto, ok := res.Value.([]xmlrpc.Value)
	if !ok || len(proto) < 3 {
		log.Printf("ros: subscriber %s: malformed requestTopic reply from %s", s.topic, pubURI)
		return
	}
	host, _ := proto[1].(string)
	portN, _ := proto[2].(int)

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, portN))
	if err != nil {
		log.Printf("ros: subscriber %s: dial %s: %v", s.topic, pubURI, err)
		return
	}

	req := wire.NewHeader()
	req.Set(wire.KeyCallerID, s.node.name)
	req.Set(wire.KeyMD5Sum, s.mtype.MD5Sum())
	req.Set(wire.KeyTopic, s.topic)
	req.Set(wire.KeyType, s.mtype.DataType())
	if err := sendHeader(conn, req); err != nil {
		conn.Close()
		return
	}

	respHeader, err := readHeader(conn)
	if err != nil {
		conn.Close()
		return
	}
	if respHeader.Has(wire.KeyError) {
		msg, _ := respHeader.Get(wire.KeyError)
		log.Printf("ros: subscriber %s: publisher %s: %s", s.topic, pubURI, msg)
		conn.Close()
		s.mu.Lock()
		s.deadURIs[pubURI] = true
		s.mu.Unlock()
		return
	}
	if !md5Compatible(respHeader, s.mtype.MD5Sum()) {
		conn.Close()
		return
	}

	pc := &pubConn{uri: pubURI, conn: conn, fr: frame.New(conn, conn)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[pubURI] = pc
	s.mu.Unlock()
	s.notify(EventConnection, pubURI)

	s.readLoop(pc)
}

func (s *Subscriber) readLoop(pc *pubConn) {
	for {
		payload, err := pc.fr.Recv()
		if err != nil {
			s.mu.Lock()
			delete(s.conns, pc.uri)
			s.mu.Unlock()
			pc.conn.Close()
			s.notify(EventDisconnect, pc.uri)
			return
		}
		metricMessagesReceived.Add(1)

		if s.opts.ThrottleMs < 0 {
			msg := s.mtype.New()
			if err := msg.Deserialize(wire.NewScanner(payload)); err != nil {
				log.Printf("ros: subscriber %s: deserialize from %s: %v", s.topic, pc.uri, err)
				continue // spec §4.7: log and drop, keep the connection
			}
			s.cb(msg)
			continue
		}
		s.node.spin.Push(s.id, payload)
	}
}

// deliverBatch is the spinner's Deliverer callback for this
// subscriber: it deserializes each queued payload once and invokes the
// user callback in push order, preserving per-client ordering (spec
// §4.4). Deserialize errors are logged and dropped, keeping the
// connection, per spec §4.7.
func (s *Subscriber) deliverBatch(batch [][]byte) {
	for _, payload := range batch {
		msg := s.mtype.New()
		if err := msg.Deserialize(wire.NewScanner(payload)); err != nil {
			log.Printf("ros: subscriber %s: deserialize: %v", s.topic, err)
			continue
		}
		s.cb(msg)
	}
}

// unsubscribe tears the subscriber down: best-effort unregistration,
// closing every publisher connection.
func (s *Subscriber) unsubscribe(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*pubConn, 0, len(s.conns))
	for _, pc := range s.conns {
		conns = append(conns, pc)
	}
	s.conns = nil
	s.mu.Unlock()

	s.node.callMaster(ctx, "unregisterSubscriber", s.node.name, s.topic, s.node.SlaveURI())

	s.node.spin.Deregister(s.id)
	for _, pc := range conns {
		pc.conn.Close()
	}

	s.node.mu.Lock()
	delete(s.node.subscribers, s.topic)
	s.node.mu.Unlock()
	metricSubscribersActive.Add(-1)
}

// Unsubscribe tears the subscriber down explicitly.
func (s *Subscriber) Unsubscribe(ctx context.Context) { s.unsubscribe(ctx) }
