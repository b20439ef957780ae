package ros

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/creachadair/taskgroup"

	"github.com/go-ros/rosnode/frame"
	"github.com/go-ros/rosnode/wire"
)

// ServiceClientOptions configures ServiceClient.
type ServiceClientOptions struct {
	// Persistent keeps the TCP connection open across calls instead of
	// reconnecting for every call (spec §4.9).
	Persistent bool
	// QueueLength bounds outstanding (not-yet-started) calls; < 0 is
	// unlimited.
	QueueLength int
}

type svcCall struct {
	req    TypedMessage
	result chan TypedMessage
	err    chan error
	ctx    context.Context
}

// A ServiceClient resolves a service's URI via the master, opens an
// optionally persistent TCP connection, and serializes at most one
// call in flight at a time, per spec §4.9. Queued-but-not-yet-started
// calls beyond QueueLength are rejected, oldest first, without
// disturbing whichever call is currently executing — the shape is
// grounded cross-pack on dermesser-clusterrpc's connection-caching
// client and single-flight async queue.
type ServiceClient struct {
	node  *Node
	id    string
	name  string
	stype ServiceType
	opts  ServiceClientOptions

	mu      sync.Mutex
	waiting []*svcCall
	closed  bool

	cachedConn net.Conn
	cachedFr   *frame.Framer

	wake  chan struct{}
	tasks *taskgroup.Group
}

// NewServiceClient constructs a handle to call name, without
// registering anything with the master: a service client is looked up
// lazily, per call, via the master's lookupService RPC (spec §4.9).
func (n *Node) NewServiceClient(stype ServiceType, name string, opts ServiceClientOptions) *ServiceClient {
	c := &ServiceClient{
		node:  n,
		id:    n.nextStableID(),
		name:  name,
		stype: stype,
		opts:  opts,
		wake:  make(chan struct{}, 1),
		tasks: taskgroup.New(nil),
	}
	c.tasks.Go(c.drain)

	n.mu.Lock()
	n.serviceClients[c.id] = c
	n.mu.Unlock()
	return c
}

// Call enqueues req and blocks until a response is received or ctx
// ends, per spec §4.9's per-call algorithm.
func (c *ServiceClient) Call(ctx context.Context, req TypedMessage) (TypedMessage, error) {
	cl := &svcCall{req: req, result: make(chan TypedMessage, 1), err: make(chan error, 1), ctx: ctx}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errShuttingDown
	}
	c.waiting = append(c.waiting, cl)
	var dropped *svcCall
	if c.opts.QueueLength >= 0 && len(c.waiting) > c.opts.QueueLength {
		dropped = c.waiting[0]
		c.waiting = c.waiting[1:]
	}
	c.mu.Unlock()
	if dropped != nil {
		dropped.err <- fmt.Errorf("ros: service client %s: call dropped by queue overflow", c.name)
	}
	c.poke()

	select {
	case v := <-cl.result:
		return v, nil
	case err := <-cl.err:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ServiceClient) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drain is the single background goroutine executing at most one call
// at a time.
func (c *ServiceClient) drain() error {
	for {
		cl, ok := c.popWaiting()
		if !ok {
			if !c.waitForWork() {
				return nil
			}
			continue
		}
		if cl.ctx.Err() != nil {
			cl.err <- cl.ctx.Err()
			continue
		}
		resp, err := c.execute(cl.ctx, cl.req)
		if err != nil {
			cl.err <- err
			continue
		}
		cl.result <- resp
	}
}

func (c *ServiceClient) popWaiting() (*svcCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiting) == 0 {
		return nil, false
	}
	cl := c.waiting[0]
	c.waiting = c.waiting[1:]
	return cl, true
}

func (c *ServiceClient) waitForWork() bool {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		if len(c.waiting) > 0 {
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()
		<-c.wake
	}
}

// execute runs the head call's wire exchange per spec §4.9.
func (c *ServiceClient) execute(ctx context.Context, req TypedMessage) (TypedMessage, error) {
	fr, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	var b wire.Builder
	req.Serialize(&b)
	if err := fr.Send(b.Bytes()); err != nil {
		c.closeConn(fr)
		return nil, fmt.Errorf("ros: service client %s: send request: %w", c.name, err)
	}

	ok, body, err := fr.RecvServiceResult()
	if err != nil {
		c.closeConn(fr)
		return nil, fmt.Errorf("ros: service client %s: receive response: %w", c.name, err)
	}
	if !ok {
		if !c.opts.Persistent {
			c.closeConn(fr)
		}
		return nil, fmt.Errorf("ros: service client %s: %s", c.name, string(body))
	}

	resp := c.stype.NewResponse()
	if err := resp.Deserialize(wire.NewScanner(body)); err != nil {
		c.closeConn(fr)
		return nil, fmt.Errorf("ros: service client %s: decode response: %w", c.name, err)
	}

	if !c.opts.Persistent {
		c.closeConn(fr)
	}
	return resp, nil
}

// closeConn closes fr's socket. For a persistent client holding fr as
// its cached connection, this also drops the cache so the next call
// redials; for a non-persistent client, fr is the call's own freshly
// dialed socket and dropCached would be a no-op, so it is closed
// directly instead (spec §4.9 step 5: "Non-persistent: close socket").
func (c *ServiceClient) closeConn(fr *frame.Framer) {
	c.mu.Lock()
	cached := fr == c.cachedFr
	if cached {
		c.cachedConn, c.cachedFr = nil, nil
	}
	c.mu.Unlock()
	fr.Close()
}

// connection returns the cached connection for a persistent client, or
// establishes a fresh one: resolve the service URI via the master,
// dial, and exchange connection headers.
func (c *ServiceClient) connection(ctx context.Context) (*frame.Framer, error) {
	c.mu.Lock()
	if c.opts.Persistent && c.cachedFr != nil {
		fr := c.cachedFr
		c.mu.Unlock()
		return fr, nil
	}
	c.mu.Unlock()

	res, err := c.node.callMaster(ctx, "lookupService", c.node.name, c.name)
	if err != nil {
		return nil, fmt.Errorf("ros: lookupService: %w", err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	uri, _ := res.Value.(string)
	addr, err := parseRPCURI(uri)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ros: dial service %s: %w", c.name, err)
	}

	req := wire.NewHeader()
	req.Set(wire.KeyCallerID, c.node.name)
	req.Set(wire.KeyService, c.name)
	req.Set(wire.KeyMD5Sum, c.stype.MD5Sum())
	if c.opts.Persistent {
		req.Set(wire.KeyPersistent, "1")
	}
	if err := sendHeader(conn, req); err != nil {
		conn.Close()
		return nil, err
	}
	respHeader, err := readHeader(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if respHeader.Has(wire.KeyError) {
		msg, _ := respHeader.Get(wire.KeyError)
		conn.Close()
		return nil, fmt.Errorf("ros: service client %s: %s", c.name, msg)
	}

	fr := frame.New(conn, conn)
	if c.opts.Persistent {
		c.mu.Lock()
		c.cachedConn, c.cachedFr = conn, fr
		c.mu.Unlock()
	}
	return fr, nil
}

func (c *ServiceClient) dropCached() {
	c.mu.Lock()
	conn := c.cachedConn
	c.cachedConn, c.cachedFr = nil, nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close stops the client's drain goroutine, rejecting queued calls,
// and closes any cached connection.
func (c *ServiceClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	waiting := c.waiting
	c.waiting = nil
	c.mu.Unlock()

	for _, cl := range waiting {
		cl.err <- errShuttingDown
	}
	c.dropCached()
	c.poke()
	c.tasks.Wait()

	c.node.mu.Lock()
	delete(c.node.serviceClients, c.id)
	c.node.mu.Unlock()
}

func parseRPCURI(uri string) (string, error) {
	const prefix = "rosrpc://"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return "", fmt.Errorf("ros: malformed service URI %q", uri)
	}
	return uri[len(prefix):], nil
}
