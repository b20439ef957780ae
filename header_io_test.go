package ros

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/go-ros/rosnode/wire"
)

func headerFields(h *wire.Header) map[string]string {
	out := make(map[string]string)
	for _, k := range h.Keys() {
		v, _ := h.Get(k)
		out[k] = v
	}
	return out
}

func TestSendRecvHeaderRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := wire.NewHeader()
	want.Set(wire.KeyCallerID, "/talker")
	want.Set(wire.KeyMD5Sum, "992ce8a1687cec8c8bd883ec73ca41d1")
	want.Set(wire.KeyTopic, "/chatter")
	want.Set(wire.KeyType, "std_msgs/String")

	done := make(chan error, 1)
	go func() { done <- sendHeader(client, want) }()

	got, err := readHeader(server)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("sendHeader: %v", err)
	}

	if diff := cmp.Diff(headerFields(want), headerFields(got)); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestReadHeaderRejectsOversizedBlock(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		var b wire.Builder
		b.U32(1 << 21) // exceeds the 1MiB guard in readHeader
		client.Write(b.Bytes())
	}()

	if _, err := readHeader(server); err == nil {
		t.Fatal("expected an error for an oversized header block")
	}
}

func TestErrorHeaderCarriesMessage(t *testing.T) {
	h := errorHeader("topic mismatch")
	got, ok := h.Get(wire.KeyError)
	if !ok || got != "topic mismatch" {
		t.Fatalf("errorHeader: got %q, ok=%v", got, ok)
	}
}

var _ = cmp.Diff // keep go-cmp in this package's test dependency surface
