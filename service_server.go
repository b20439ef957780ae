package ros

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/go-ros/rosnode/frame"
	"github.com/go-ros/rosnode/wire"
)

// A ServiceServer accepts connections for one service name, validates
// them, and dispatches each request frame to a user handler, per spec
// §4.8.
type ServiceServer struct {
	node    *Node
	name    string
	stype   ServiceType
	handler ServiceHandler
	obs     Observer
}

// AdvertiseService registers name with the master and returns a
// ServiceServer that dispatches incoming requests to handler, per
// spec §4.8.
func (n *Node) AdvertiseService(ctx context.Context, name string, stype ServiceType, handler ServiceHandler) (*ServiceServer, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, errShuttingDown
	}
	if _, exists := n.serviceServers[name]; exists {
		n.mu.Unlock()
		return nil, fmt.Errorf("ros: service %s already advertised by this node", name)
	}
	n.mu.Unlock()

	srv := &ServiceServer{node: n, name: name, stype: stype, handler: handler}

	host, port := n.peerAddr()
	res, err := n.callMaster(ctx, "registerService", n.name, name, fmtRPCURI(host, port), n.SlaveURI())
	if err != nil {
		return nil, fmt.Errorf("ros: registerService: %w", err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.serviceServers[name] = srv
	n.mu.Unlock()
	metricServersActive.Add(1)
	srv.notify(EventRegistered, name)
	return srv, nil
}

// SetObserver installs an Observer notified of registered, connection,
// and disconnect events (spec §9).
func (srv *ServiceServer) SetObserver(o Observer) { srv.obs = o }

func (srv *ServiceServer) notify(event, detail string) {
	if srv.obs != nil {
		srv.obs.OnEvent(event, detail)
	}
}

// acceptClient validates an inbound service client header, replies,
// then serves one or more requests depending on the persistent flag,
// per spec §4.8.
func (srv *ServiceServer) acceptClient(conn net.Conn, header *wire.Header) {
	if missing := header.RequireFields(wire.KeyCallerID, wire.KeyService, wire.KeyMD5Sum); missing != "" {
		sendHeader(conn, errorHeader("missing required field: "+missing))
		conn.Close()
		return
	}
	if service, _ := header.Get(wire.KeyService); service != srv.name {
		sendHeader(conn, errorHeader("service name mismatch"))
		conn.Close()
		return
	}
	if !md5Compatible(header, srv.stype.MD5Sum()) {
		sendHeader(conn, errorHeader("md5sum mismatch"))
		conn.Close()
		return
	}

	resp := wire.NewHeader()
	resp.Set(wire.KeyCallerID, srv.node.name)
	resp.Set(wire.KeyMD5Sum, srv.stype.MD5Sum())
	resp.Set(wire.KeyType, srv.stype.DataType())
	if err := sendHeader(conn, resp); err != nil {
		conn.Close()
		return
	}
	srv.notify(EventConnection, conn.RemoteAddr().String())

	persistent := false
	if v, ok := header.Get(wire.KeyPersistent); ok {
		persistent = v == "1"
	}

	fr := frame.New(conn, conn)
	for {
		payload, err := fr.Recv()
		if err != nil {
			conn.Close()
			srv.notify(EventDisconnect, conn.RemoteAddr().String())
			return
		}
		srv.serveOne(fr, payload)
		if !persistent {
			conn.Close()
			srv.notify(EventDisconnect, conn.RemoteAddr().String())
			return
		}
	}
}

// serveOne decodes one request, invokes the handler, and writes the
// success- or failure-tagged response, per spec §4.8. A handler error
// becomes a failure response rather than propagating, matching spec
// §7 taxonomy item 4 ("service handler exceptions become 0-tagged
// error responses").
func (srv *ServiceServer) serveOne(fr *frame.Framer, payload []byte) {
	metricServiceCalls.Add(1)
	req := srv.stype.NewRequest()
	if err := req.Deserialize(wire.NewScanner(payload)); err != nil {
		metricServiceFailures.Add(1)
		fr.SendServiceFailure("malformed request: " + err.Error())
		return
	}

	resp, err := func() (resp TypedMessage, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return srv.handler(req)
	}()
	if err != nil {
		metricServiceFailures.Add(1)
		if sendErr := fr.SendServiceFailure(err.Error()); sendErr != nil {
			log.Printf("ros: service %s: write failure response: %v", srv.name, sendErr)
		}
		return
	}

	var b wire.Builder
	resp.Serialize(&b)
	if err := fr.SendServiceSuccess(b.Bytes()); err != nil {
		log.Printf("ros: service %s: write success response: %v", srv.name, err)
	}
}

// unadvertise tears the server down: best-effort unregistration.
func (srv *ServiceServer) unadvertise(ctx context.Context) {
	host, port := srv.node.peerAddr()
	srv.node.callMaster(ctx, "unregisterService", srv.node.name, srv.name, fmtRPCURI(host, port))

	srv.node.mu.Lock()
	delete(srv.node.serviceServers, srv.name)
	srv.node.mu.Unlock()
	metricServersActive.Add(-1)
}

// UnadvertiseService tears the server down explicitly.
func (srv *ServiceServer) UnadvertiseService(ctx context.Context) { srv.unadvertise(ctx) }
