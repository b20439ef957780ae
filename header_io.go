package ros

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-ros/rosnode/wire"
)

// sendHeader writes a connection header in the self-contained format
// described in spec §4.2: a u32 length prefix followed by the block.
// wire.Header.Encode already produces exactly these bytes.
func sendHeader(w io.Writer, h *wire.Header) error {
	_, err := w.Write(h.Encode())
	return err
}

// readHeader reads one connection header from r.
func readHeader(r io.Reader) (*wire.Header, error) {
	var lenb [4]byte
	if _, err := io.ReadFull(r, lenb[:]); err != nil {
		return nil, fmt.Errorf("ros: read header length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenb[:])
	if n > 1<<20 {
		return nil, fmt.Errorf("ros: header block length %d exceeds maximum", n)
	}
	block := make([]byte, n)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, fmt.Errorf("ros: read header block: %w", err)
	}
	h := wire.NewHeader()
	buf := append(lenb[:], block...)
	if err := h.Decode(buf); err != nil {
		return nil, err
	}
	return h, nil
}
