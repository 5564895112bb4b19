// Package metadata defines the typed key/value model attached to every
// record in a store.
package metadata

import (
	"bytes"
	"encoding/gob"
)

// Key names one metadata attribute on a record.
type Key string

// ValueKind discriminates the two metadata value representations.
type ValueKind uint8

const (
	// KindText is a UTF-8 string value.
	KindText ValueKind = iota
	// KindBytes is an opaque byte payload (the proxy hex-encodes images on
	// ingress; here they arrive as raw bytes).
	KindBytes
)

// Value is a metadata value: either UTF-8 text or an opaque byte string.
// Both representations are comparable and hashable via Key(), which is what
// the predicate index uses to bucket postings.
type Value struct {
	kind  ValueKind
	text  string
	bytes []byte
}

// Text constructs a text metadata value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bytes constructs a raw-bytes metadata value.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bytes: cp}
}

// Kind reports which representation this value holds.
func (v Value) Kind() ValueKind { return v.kind }

// TextValue returns the text payload (empty if this is a Bytes value).
func (v Value) TextValue() string { return v.text }

// BytesValue returns the byte payload (nil if this is a Text value).
func (v Value) BytesValue() []byte { return v.bytes }

// Equal reports whether two values are identical in kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindText {
		return v.text == other.text
	}
	return bytes.Equal(v.bytes, other.bytes)
}

// Key returns a comparable string suitable for use as a map key when
// bucketing postings by (MetadataKey, MetadataValue) — text values are
// prefixed to avoid collision with bytes values that happen to share
// content.
func (v Value) Key() string {
	if v.kind == KindText {
		return "t:" + v.text
	}
	return "b:" + string(v.bytes)
}

// gobValue mirrors Value's private fields so gob (which only encodes
// exported fields) can serialize it.
type gobValue struct {
	Kind  ValueKind
	Text  string
	Bytes []byte
}

// GobEncode implements gob.GobEncoder since Value's fields are
// unexported.
func (v Value) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobValue{Kind: v.kind, Text: v.text, Bytes: v.bytes}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (v *Value) GobDecode(data []byte) error {
	var gv gobValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gv); err != nil {
		return err
	}
	v.kind = gv.Kind
	v.text = gv.Text
	v.bytes = gv.Bytes
	return nil
}

// Map is the full metadata attached to one record.
type Map map[Key]Value

// Clone returns a shallow copy of m (metadata values are themselves
// immutable, so a shallow copy is a full copy for our purposes).
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
