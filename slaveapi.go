package ros

import (
	"context"
	"fmt"

	"github.com/go-ros/rosnode/xmlrpc"
)

// serveSlaveAPI dispatches one incoming slave RPC, per spec §4.10's
// "exposes a slave RPC server answering at least: getBusStats,
// getBusInfo, getMasterUri, shutdown, getPid, getSubscriptions,
// getPublications, paramUpdate, publisherUpdate, requestTopic."
func (n *Node) serveSlaveAPI(ctx context.Context, method string, params []xmlrpc.Value) (xmlrpc.Result, error) {
	switch method {
	case "getPid":
		return ok(n.pid), nil
	case "getMasterUri":
		return ok(n.masterURI), nil
	case "getBusStats":
		return ok([]xmlrpc.Value{}), nil
	case "getBusInfo":
		return ok([]xmlrpc.Value{}), nil
	case "getSubscriptions":
		return ok(n.listSubscriptions()), nil
	case "getPublications":
		return ok(n.listPublications()), nil
	case "paramUpdate":
		return ok(0), nil
	case "shutdown":
		go n.Shutdown(context.Background())
		return ok(0), nil
	case "requestTopic":
		return n.handleRequestTopic(params)
	case "publisherUpdate":
		return n.handlePublisherUpdate(params)
	default:
		return xmlrpc.Result{Code: -1, Message: "unknown method: " + method}, nil
	}
}

func ok(v xmlrpc.Value) xmlrpc.Result { return xmlrpc.Result{Code: 1, Message: "", Value: v} }

func (n *Node) listSubscriptions() []xmlrpc.Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]xmlrpc.Value, 0, len(n.subscribers))
	for topic, s := range n.subscribers {
		out = append(out, []xmlrpc.Value{topic, s.mtype.DataType()})
	}
	return out
}

func (n *Node) listPublications() []xmlrpc.Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]xmlrpc.Value, 0, len(n.publishers))
	for topic, p := range n.publishers {
		out = append(out, []xmlrpc.Value{topic, p.mtype.DataType()})
	}
	return out
}

// handleRequestTopic answers spec §4.10's requestTopic: it returns
// ["TCPROS", host, port] for the advertising publisher of the named
// topic.
func (n *Node) handleRequestTopic(params []xmlrpc.Value) (xmlrpc.Result, error) {
	if len(params) < 2 {
		return xmlrpc.Result{Code: -1, Message: "requestTopic: missing arguments"}, nil
	}
	topic, _ := params[1].(string)

	n.mu.Lock()
	pub := n.publishers[topic]
	n.mu.Unlock()
	if pub == nil {
		return xmlrpc.Result{Code: 0, Message: fmt.Sprintf("no publisher for topic %s", topic)}, nil
	}

	host, port := n.peerAddr()
	return ok([]xmlrpc.Value{"TCPROS", host, port}), nil
}

// handlePublisherUpdate answers spec §4.10's publisherUpdate: it
// forwards the URI list to the owning subscriber for reconciliation
// (spec §8 scenario 6).
func (n *Node) handlePublisherUpdate(params []xmlrpc.Value) (xmlrpc.Result, error) {
	if len(params) < 3 {
		return xmlrpc.Result{Code: -1, Message: "publisherUpdate: missing arguments"}, nil
	}
	topic, _ := params[1].(string)
	rawURIs, _ := params[2].([]xmlrpc.Value)

	uris := make([]string, 0, len(rawURIs))
	for _, u := range rawURIs {
		if s, ok := u.(string); ok {
			uris = append(uris, s)
		}
	}

	n.mu.Lock()
	sub := n.subscribers[topic]
	n.mu.Unlock()
	if sub == nil {
		return xmlrpc.Result{Code: 0, Message: fmt.Sprintf("not subscribed to topic %s", topic)}, nil
	}
	sub.publisherUpdate(uris)
	return ok(0), nil
}
