package wire

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Set(KeyCallerID, "/talker")
	h.Set(KeyTopic, "/chatter")
	h.Set(KeyMD5Sum, "992ce8a1687cec8c8bd883ec73ca41d1")
	h.Set(KeyType, "std_msgs/String")
	h.Set("x_custom_unknown_key", "still-here")

	enc := h.Encode()

	var got Header
	if err := got.Decode(enc); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for _, k := range h.Keys() {
		want, _ := h.Get(k)
		gotv, ok := got.Get(k)
		if !ok || gotv != want {
			t.Fatalf("key %q: got %q, %v, want %q", k, gotv, ok, want)
		}
	}
}

func TestHeaderRequireFields(t *testing.T) {
	h := NewHeader()
	h.Set(KeyTopic, "/chatter")
	if missing := h.RequireFields(KeyCallerID, KeyTopic, KeyMD5Sum, KeyType); missing != KeyCallerID {
		t.Fatalf("got missing=%q, want %q", missing, KeyCallerID)
	}
	h.Set(KeyCallerID, "/talker")
	h.Set(KeyMD5Sum, "*")
	h.Set(KeyType, "*")
	if missing := h.RequireFields(KeyCallerID, KeyTopic, KeyMD5Sum, KeyType); missing != "" {
		t.Fatalf("got missing=%q, want none", missing)
	}
}
