package metadata

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextValueRoundTrip(t *testing.T) {
	v := Text("hello")
	assert.Equal(t, KindText, v.Kind())
	assert.Equal(t, "hello", v.TextValue())
	assert.Nil(t, v.BytesValue())
}

func TestBytesValueCopiesInput(t *testing.T) {
	b := []byte{1, 2, 3}
	v := Bytes(b)
	b[0] = 0xFF
	assert.Equal(t, []byte{1, 2, 3}, v.BytesValue(), "Bytes must copy, not alias, its input")
}

func TestEqual(t *testing.T) {
	assert.True(t, Text("a").Equal(Text("a")))
	assert.False(t, Text("a").Equal(Text("b")))
	assert.False(t, Text("a").Equal(Bytes([]byte("a"))), "kind mismatch is never equal")
	assert.True(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 2})))
}

func TestKeyAvoidsTextBytesCollision(t *testing.T) {
	text := Text("x")
	raw := Bytes([]byte("x"))
	assert.NotEqual(t, text.Key(), raw.Key())
}

func TestGobRoundTrip(t *testing.T) {
	for _, v := range []Value{Text("payload"), Bytes([]byte{9, 8, 7})} {
		var buf bytes.Buffer
		require.NoError(t, gob.NewEncoder(&buf).Encode(v))

		var decoded Value
		require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))
		assert.True(t, v.Equal(decoded))
	}
}

func TestMapClone(t *testing.T) {
	m := Map{"a": Text("1"), "b": Text("2")}
	clone := m.Clone()
	clone["a"] = Text("changed")

	assert.Equal(t, Text("1"), m["a"], "mutating the clone must not affect the original")
	assert.Len(t, m, 2)
}
