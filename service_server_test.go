package ros

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-ros/rosnode/frame"
	"github.com/go-ros/rosnode/wire"
)

func newTestServiceServer(name string, handler ServiceHandler) *ServiceServer {
	return &ServiceServer{
		node:    &Node{name: "/adder"},
		name:    name,
		stype:   fakeSvcType{},
		handler: handler,
	}
}

func clientServiceHeader(service string, persistent bool) *wire.Header {
	h := wire.NewHeader()
	h.Set(wire.KeyCallerID, "/caller")
	h.Set(wire.KeyService, service)
	h.Set(wire.KeyMD5Sum, "fakesvcmd5")
	if persistent {
		h.Set(wire.KeyPersistent, "1")
	}
	return h
}

func TestServiceServerSuccessResponse(t *testing.T) {
	srv := newTestServiceServer("/add", func(req TypedMessage) (TypedMessage, error) {
		in := req.(*fakeMsg)
		return &fakeMsg{Data: in.Data + "!"}, nil
	})

	client, server := net.Pipe()
	go srv.acceptClient(server, clientServiceHeader("/add", false))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readHeader(client); err != nil {
		t.Fatalf("readHeader: %v", err)
	}

	fr := frame.New(client, client)
	var b wire.Builder
	(&fakeMsg{Data: "hi"}).Serialize(&b)
	if err := fr.Send(b.Bytes()); err != nil {
		t.Fatalf("send request: %v", err)
	}

	ok, body, err := fr.RecvServiceResult()
	if err != nil {
		t.Fatalf("RecvServiceResult: %v", err)
	}
	if !ok {
		t.Fatalf("expected success, got failure body %q", body)
	}
	var resp fakeMsg
	if err := resp.Deserialize(wire.NewScanner(body)); err != nil {
		t.Fatalf("deserialize response: %v", err)
	}
	if resp.Data != "hi!" {
		t.Fatalf("got %q, want %q", resp.Data, "hi!")
	}
}

func TestServiceServerHandlerFailureTaggedError(t *testing.T) {
	srv := newTestServiceServer("/add", func(req TypedMessage) (TypedMessage, error) {
		return nil, errors.New("boom")
	})

	client, server := net.Pipe()
	go srv.acceptClient(server, clientServiceHeader("/add", false))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readHeader(client); err != nil {
		t.Fatalf("readHeader: %v", err)
	}

	fr := frame.New(client, client)
	var b wire.Builder
	(&fakeMsg{Data: "hi"}).Serialize(&b)
	if err := fr.Send(b.Bytes()); err != nil {
		t.Fatalf("send request: %v", err)
	}

	ok, body, err := fr.RecvServiceResult()
	if err != nil {
		t.Fatalf("RecvServiceResult: %v", err)
	}
	if ok {
		t.Fatal("expected a failure response")
	}
	if string(body) != "boom" {
		t.Fatalf("got error %q, want %q", body, "boom")
	}
}

func TestServiceServerRejectsServiceNameMismatch(t *testing.T) {
	srv := newTestServiceServer("/add", func(req TypedMessage) (TypedMessage, error) {
		t.Fatal("handler should not be invoked on a name mismatch")
		return nil, nil
	})

	client, server := net.Pipe()
	go srv.acceptClient(server, clientServiceHeader("/subtract", false))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := readHeader(client)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if !resp.Has(wire.KeyError) {
		t.Fatal("expected an error header for a service name mismatch")
	}
}

func TestServiceServerPersistentClientServesMultipleRequests(t *testing.T) {
	calls := 0
	srv := newTestServiceServer("/add", func(req TypedMessage) (TypedMessage, error) {
		calls++
		return &fakeMsg{Data: "ok"}, nil
	})

	client, server := net.Pipe()
	defer client.Close()
	go srv.acceptClient(server, clientServiceHeader("/add", true))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readHeader(client); err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	fr := frame.New(client, client)

	for i := 0; i < 2; i++ {
		var b wire.Builder
		(&fakeMsg{Data: "x"}).Serialize(&b)
		if err := fr.Send(b.Bytes()); err != nil {
			t.Fatalf("send request %d: %v", i, err)
		}
		ok, _, err := fr.RecvServiceResult()
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if calls != 2 {
		t.Fatalf("got %d handler calls, want 2", calls)
	}
}
