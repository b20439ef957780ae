package xmlrpc

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoSuccessTuple(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var mc xmlMethodCall
		if err := xml.Unmarshal(body, &mc); err != nil {
			t.Fatalf("server: decode call: %v", err)
		}
		if mc.MethodName != "registerPublisher" {
			t.Fatalf("got method %q", mc.MethodName)
		}
		w.Header().Set("Content-Type", "text/xml")
		w.Write(mustMarshalResponse(t, 1, "OK", []Value{"http://talker:1234/"}))
	}))
	defer srv.Close()

	res, err := Do(context.Background(), srv.Client(), srv.URL, Call{
		Method: "registerPublisher",
		Params: []Value{"/talker", "/chatter", "std_msgs/String", "http://talker:1234/"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !res.Ok() {
		t.Fatalf("expected Ok, got code=%d msg=%q", res.Code, res.Message)
	}
	arr, ok := res.Value.([]Value)
	if !ok || len(arr) != 1 || arr[0] != "http://talker:1234/" {
		t.Fatalf("unexpected value: %#v", res.Value)
	}
}

func TestDoFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/xml")
		w.Write(mustMarshalResponse(t, -1, "no such topic", ""))
	}))
	defer srv.Close()

	res, err := Do(context.Background(), srv.Client(), srv.URL, Call{Method: "lookupService", Params: []Value{"/add_two_ints"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Ok() {
		t.Fatal("expected failure status")
	}
	if res.Message != "no such topic" {
		t.Fatalf("got message %q", res.Message)
	}
}

func TestServeHTTPRoundTrip(t *testing.T) {
	h := ServeHTTP(func(ctx context.Context, method string, params []Value) (Result, error) {
		if method != "getPid" {
			t.Fatalf("got method %q", method)
		}
		return Result{Code: 1, Message: "", Value: 4242}, nil
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	res, err := Do(context.Background(), srv.Client(), srv.URL, Call{Method: "getPid", Params: []Value{"/caller"}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !res.Ok() || res.Value != 4242 {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func mustMarshalResponse(t *testing.T, code int, msg string, value Value) []byte {
	t.Helper()
	v, err := toXMLValue([]Value{code, msg, value})
	if err != nil {
		t.Fatalf("toXMLValue: %v", err)
	}
	mr := xmlMethodResponse{Params: []xmlParam{{Value: v}}}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(mr); err != nil {
		t.Fatalf("encode response: %v", err)
	}
	return buf.Bytes()
}
