package wire

import (
	"fmt"
	"strings"
)

// A Header is the key=value connection header exchanged at the start
// of every peer connection (spec §4.2). Unknown keys are preserved so
// that callers which only recognize a subset of keys never reject a
// header solely because of additional fields.
type Header struct {
	fields map[string]string
}

// NewHeader constructs an empty header.
func NewHeader() *Header { return &Header{fields: make(map[string]string)} }

// Set assigns value to key, overwriting any existing value.
func (h *Header) Set(key, value string) {
	if h.fields == nil {
		h.fields = make(map[string]string)
	}
	h.fields[key] = value
}

// Get returns the value for key and whether it was present.
func (h *Header) Get(key string) (string, bool) {
	v, ok := h.fields[key]
	return v, ok
}

// Has reports whether key is present and non-empty.
func (h *Header) Has(key string) bool {
	v, ok := h.fields[key]
	return ok && v != ""
}

// Keys returns the set of keys present in the header, in no
// particular order.
func (h *Header) Keys() []string {
	out := make([]string, 0, len(h.fields))
	for k := range h.fields {
		out = append(out, k)
	}
	return out
}

// Recognized connection header keys (spec §4.2).
const (
	KeyCallerID           = "callerid"
	KeyMD5Sum             = "md5sum"
	KeyTopic              = "topic"
	KeyService            = "service"
	KeyType               = "type"
	KeyLatching           = "latching"
	KeyPersistent         = "persistent"
	KeyTCPNoDelay         = "tcp_nodelay"
	KeyMessageDefinition  = "message_definition"
	KeyError              = "error"
)

// Encode serializes h in the on-wire format: a u32-length-prefixed
// block containing a sequence of u32-length-prefixed "key=value"
// ASCII strings.
func (h *Header) Encode() []byte {
	var inner Builder
	for k, v := range h.fields {
		inner.Str(k + "=" + v)
	}
	var b Builder
	b.Raw(inner.Bytes())
	out := make([]byte, 4+b.Len())
	var lenb Builder
	lenb.U32(uint32(b.Len()))
	copy(out, lenb.Bytes())
	copy(out[4:], b.Bytes())
	return out
}

// Decode parses buf (the header block, including its outer length
// prefix) into h. Unknown keys are retained, never rejected.
func (h *Header) Decode(buf []byte) error {
	s := NewScanner(buf)
	blockLen, err := s.U32()
	if err != nil {
		return fmt.Errorf("wire: header block length: %w", err)
	}
	block, err := s.Raw(int(blockLen))
	if err != nil {
		return fmt.Errorf("wire: header block body: %w", err)
	}

	if h.fields == nil {
		h.fields = make(map[string]string)
	}
	bs := NewScanner(block)
	for bs.Len() > 0 {
		field, err := bs.Str()
		if err != nil {
			return fmt.Errorf("wire: header field: %w", err)
		}
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("wire: malformed header field %q", field)
		}
		h.fields[k] = v
	}
	return nil
}

// RequireFields reports the first key in keys that is missing or
// empty, or "" if all are present.
func (h *Header) RequireFields(keys ...string) string {
	for _, k := range keys {
		if !h.Has(k) {
			return k
		}
	}
	return ""
}
