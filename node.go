package ros

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"

	"github.com/go-ros/rosnode/masterclient"
	"github.com/go-ros/rosnode/spinner"
	"github.com/go-ros/rosnode/xmlrpc"
)

// Options configures a Node at construction. Name is required; an
// empty MasterURI or Host is resolved from the environment, per spec
// §4.10 and §6.
type Options struct {
	// Name is the node's fully qualified name; it must begin with "/".
	Name string
	// MasterURI overrides ROS_MASTER_URI when non-empty.
	MasterURI string
	// Host overrides ROS_HOSTNAME/ROS_IP when non-empty.
	Host string
	// SpinRateHz overrides the spinner's default tick rate (200 Hz).
	SpinRateHz int
}

// A Node is the per-process runtime described in spec §4.10: it holds
// the process's identity, a master RPC client, the slave API HTTP
// server, the peer protocol TCP listener, the cooperative spinner, and
// the registries of publishers, subscribers, and service endpoints it
// owns by stable id, per the ownership model in spec §3/§9.
type Node struct {
	name      string
	masterURI string
	host      string
	pid       int

	master *masterclient.Client
	spin   *spinner.Spinner

	peerLn    net.Listener
	slaveLn   net.Listener
	slaveHTTP *http.Server
	tasks     *taskgroup.Group

	mu             sync.Mutex
	closed         bool
	nextID         uint64
	publishers     map[string]*Publisher     // by topic
	subscribers    map[string]*Subscriber    // by topic
	serviceServers map[string]*ServiceServer // by service name
	serviceClients map[string]*ServiceClient // by stable id
}

// New constructs and starts a Node: it resolves identity and the
// master endpoint, starts the peer protocol listener and the slave API
// HTTP server, and is ready to advertise/subscribe immediately on
// return (spec §4.10's "start slave server before announcing to
// master").
func New(opts Options) (*Node, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("ros: node name must be set")
	}
	if opts.Name[0] != '/' {
		return nil, fmt.Errorf("ros: node name %q must begin with %q", opts.Name, "/")
	}

	masterURI := opts.MasterURI
	if masterURI == "" {
		masterURI = os.Getenv("ROS_MASTER_URI")
	}
	if masterURI == "" {
		return nil, fmt.Errorf("ros: no master URI: set Options.MasterURI or ROS_MASTER_URI")
	}

	host := opts.Host
	if host == "" {
		host = os.Getenv("ROS_HOSTNAME")
	}
	if host == "" {
		host = os.Getenv("ROS_IP")
	}
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("ros: resolve advertised host: %w", err)
		}
		host = h
	}

	peerLn, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("ros: listen for peer connections: %w", err)
	}
	slaveLn, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		peerLn.Close()
		return nil, fmt.Errorf("ros: listen for slave API: %w", err)
	}

	n := &Node{
		name:           opts.Name,
		masterURI:      masterURI,
		host:           host,
		pid:            os.Getpid(),
		master:         masterclient.New(&httpMasterTransport{endpoint: masterURI}),
		spin:           spinner.New(opts.SpinRateHz),
		peerLn:         peerLn,
		slaveLn:        slaveLn,
		tasks:          taskgroup.New(nil),
		publishers:     make(map[string]*Publisher),
		subscribers:    make(map[string]*Subscriber),
		serviceServers: make(map[string]*ServiceServer),
		serviceClients: make(map[string]*ServiceClient),
	}

	n.slaveHTTP = &http.Server{Handler: xmlrpc.ServeHTTP(n.serveSlaveAPI)}
	n.tasks.Go(func() error {
		n.slaveHTTP.Serve(slaveLn)
		return nil
	})
	n.tasks.Go(n.acceptPeers)

	return n, nil
}

// SlaveURI is the XML-RPC endpoint this node's slave API answers on,
// registered with the master for every advertise/subscribe call.
func (n *Node) SlaveURI() string {
	return "http://" + n.slaveLn.Addr().String() + "/"
}

// peerAddr is the host:port this node accepts peer protocol
// connections on, advertised to subscribers via requestTopic.
func (n *Node) peerAddr() (string, int) {
	host, portStr, _ := net.SplitHostPort(n.peerLn.Addr().String())
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = n.host
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (n *Node) nextStableID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	return fmt.Sprintf("%s#%d", n.name, n.nextID)
}

func (n *Node) callMaster(ctx context.Context, method string, params ...any) (masterclient.Result, error) {
	return n.master.Call(ctx, method, params...)
}

// Shutdown tears the node down per spec §4.10: it unregisters every
// endpoint via the master client (best effort), closes peer sockets,
// stops the slave server, and disarms the spinner.
func (n *Node) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	pubs := make([]*Publisher, 0, len(n.publishers))
	for _, p := range n.publishers {
		pubs = append(pubs, p)
	}
	subs := make([]*Subscriber, 0, len(n.subscribers))
	for _, s := range n.subscribers {
		subs = append(subs, s)
	}
	srvs := make([]*ServiceServer, 0, len(n.serviceServers))
	for _, s := range n.serviceServers {
		srvs = append(srvs, s)
	}
	clients := make([]*ServiceClient, 0, len(n.serviceClients))
	for _, c := range n.serviceClients {
		clients = append(clients, c)
	}
	n.mu.Unlock()

	for _, p := range pubs {
		p.unadvertise(ctx)
	}
	for _, s := range subs {
		s.unsubscribe(ctx)
	}
	for _, s := range srvs {
		s.unadvertise(ctx)
	}
	for _, c := range clients {
		c.Close()
	}

	n.peerLn.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n.slaveHTTP.Shutdown(shutdownCtx)

	n.spin.Close()
	n.master.Close()
	n.tasks.Wait()
	return nil
}

// httpMasterTransport adapts the xmlrpc package to
// masterclient.Transport, so the master client's retry/backoff
// machinery never has to know its calls travel over HTTP.
type httpMasterTransport struct {
	endpoint string
}

func (t *httpMasterTransport) Call(ctx context.Context, method string, params []any) (int, string, any, error) {
	vals := make([]xmlrpc.Value, len(params))
	for i, p := range params {
		vals[i] = p
	}
	res, err := xmlrpc.Do(ctx, xmlrpc.DefaultClient, t.endpoint, xmlrpc.Call{Method: method, Params: vals})
	if err != nil {
		return 0, "", nil, err
	}
	return res.Code, res.Message, res.Value, nil
}
