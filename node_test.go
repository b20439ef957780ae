package ros

import (
	"context"
	"testing"
)

func TestNewRejectsMissingName(t *testing.T) {
	if _, err := New(Options{MasterURI: "http://127.0.0.1:11311/"}); err == nil {
		t.Fatal("expected an error for a missing node name")
	}
}

func TestNewRejectsNameWithoutLeadingSlash(t *testing.T) {
	if _, err := New(Options{Name: "talker", MasterURI: "http://127.0.0.1:11311/"}); err == nil {
		t.Fatal("expected an error for a node name without a leading slash")
	}
}

func TestNewRejectsMissingMasterURI(t *testing.T) {
	t.Setenv("ROS_MASTER_URI", "")
	if _, err := New(Options{Name: "/talker"}); err == nil {
		t.Fatal("expected an error for a missing master URI")
	}
}

func TestNewStartsAndShutsDownCleanly(t *testing.T) {
	n, err := New(Options{
		Name:      "/talker",
		MasterURI: "http://127.0.0.1:1/", // never dialed unless Advertise/Subscribe is called
		Host:      "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.SlaveURI() == "" {
		t.Fatal("expected a non-empty slave URI")
	}
	host, port := n.peerAddr()
	if host == "" || port == 0 {
		t.Fatalf("unexpected peer address: %s:%d", host, port)
	}
	if err := n.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
