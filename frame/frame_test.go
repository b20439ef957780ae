package frame

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type rwc struct {
	io.Reader
	io.Writer
}

func (rwc) Close() error { return nil }

func TestSendRecvRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, rwc{Writer: &buf})

	if err := f.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := f.Send([]byte{}); err != nil {
		t.Fatalf("Send empty: %v", err)
	}
	if err := f.Send([]byte("world")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, want := range [][]byte{[]byte("hello"), {}, []byte("world")} {
		got, err := f.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if !cmp.Equal(got, want, cmp.Comparer(func(a, b []byte) bool { return bytes.Equal(a, b) })) {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestRecvStopsOnPartialTail(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{5, 0, 0, 0}) // claims 5 bytes but supplies none
	f := New(&buf, rwc{Writer: io.Discard})
	if _, err := f.Recv(); err == nil {
		t.Fatal("expected an error on a partial tail")
	}
}

func TestServiceResultRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cf := New(client, client)
	sf := New(server, server)

	done := make(chan error, 1)
	go func() { done <- sf.SendServiceSuccess([]byte("sum=5")) }()

	ok, body, err := cf.RecvServiceResult()
	if err != nil {
		t.Fatalf("RecvServiceResult: %v", err)
	}
	if !ok || string(body) != "sum=5" {
		t.Fatalf("got ok=%v body=%q", ok, body)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	go func() { done <- sf.SendServiceFailure("handler panicked") }()
	ok, body, err = cf.RecvServiceResult()
	if err != nil {
		t.Fatalf("RecvServiceResult: %v", err)
	}
	if ok || string(body) != "handler panicked" {
		t.Fatalf("got ok=%v body=%q", ok, body)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
}
