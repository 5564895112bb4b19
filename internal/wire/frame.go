package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

// MagicBytes opens every frame on the wire, grounded on the upstream
// bincode MAGIC_BYTES constant.
var MagicBytes = [8]byte{'A', 'H', 'N', 'L', 'I', 'C', 'H', ';'}

const (
	// versionLength is the on-wire size of a Version: 1 byte major + 2
	// bytes minor + 2 bytes patch, all little-endian.
	versionLength = 5
	// lengthHeaderSize is the on-wire size of the payload length field: a
	// fixed 8-byte little-endian u64. Deliberately fixed-width, not
	// varint, matching the upstream frame layout.
	lengthHeaderSize = 8
	// maxPayloadSize bounds a single frame's payload to guard against a
	// corrupt or hostile length header forcing an unbounded allocation.
	maxPayloadSize = 1 << 30 // 1 GiB
)

// ReadFrame reads one length-prefixed frame from r: magic bytes, version
// triple, u64 LE payload length, then the payload itself. Any framing
// failure (bad magic, incompatible version, truncated read) is
// connection-fatal per the error taxonomy.
func ReadFrame(r io.Reader) (Version, []byte, error) {
	var header [8 + versionLength + lengthHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Version{}, nil, dberrors.Wrap(dberrors.KindFraming, err)
	}

	var magic [8]byte
	copy(magic[:], header[:8])
	if magic != MagicBytes {
		return Version{}, nil, dberrors.Framing("bad magic bytes in frame header")
	}

	v := Version{
		Major: header[8],
		Minor: binary.LittleEndian.Uint16(header[9:11]),
		Patch: binary.LittleEndian.Uint16(header[11:13]),
	}
	if !CurrentVersion.IsCompatible(v) {
		return v, nil, dberrors.IncompatibleVersion(
			fmt.Sprintf("incompatible protocol version: peer=%s local=%s", v, CurrentVersion))
	}

	length := binary.LittleEndian.Uint64(header[13:21])
	if length > maxPayloadSize {
		return v, nil, dberrors.Framing(fmt.Sprintf("frame payload too large: %d bytes", length))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return v, nil, dberrors.Wrap(dberrors.KindFraming, err)
	}
	return v, payload, nil
}

// WriteFrame writes one length-prefixed frame to w using the current
// protocol version.
func WriteFrame(w io.Writer, payload []byte) error {
	header := make([]byte, 8+versionLength+lengthHeaderSize)
	copy(header[:8], MagicBytes[:])
	header[8] = CurrentVersion.Major
	binary.LittleEndian.PutUint16(header[9:11], CurrentVersion.Minor)
	binary.LittleEndian.PutUint16(header[11:13], CurrentVersion.Patch)
	binary.LittleEndian.PutUint64(header[13:21], uint64(len(payload)))

	if _, err := w.Write(header); err != nil {
		return dberrors.Wrap(dberrors.KindFraming, err)
	}
	if _, err := w.Write(payload); err != nil {
		return dberrors.Wrap(dberrors.KindFraming, err)
	}
	return nil
}
