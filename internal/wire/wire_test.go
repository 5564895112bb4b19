package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello frame")
	require.NoError(t, WriteFrame(&buf, payload))

	v, got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("x")))
	corrupt := buf.Bytes()
	corrupt[0] = 'Z'

	_, _, err := ReadFrame(bytes.NewReader(corrupt))
	require.Error(t, err)
	assert.Equal(t, dberrors.KindFraming, dberrors.GetKind(err))
}

func TestReadFrameRejectsIncompatibleVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MagicBytes[:])
	buf.WriteByte(CurrentVersion.Major + 1)
	var minorPatch [4]byte
	buf.Write(minorPatch[:])
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], 0)
	buf.Write(length[:])

	_, _, err := ReadFrame(&buf)
	require.Error(t, err)
	assert.Equal(t, dberrors.KindIncompatibleVersion, dberrors.GetKind(err))
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MagicBytes[:])
	buf.WriteByte(CurrentVersion.Major)
	var minorPatch [4]byte
	buf.Write(minorPatch[:])
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], 1<<31)
	buf.Write(length[:])

	_, _, err := ReadFrame(&buf)
	require.Error(t, err)
	assert.Equal(t, dberrors.KindFraming, dberrors.GetKind(err))
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MagicBytes[:])
	buf.WriteByte(CurrentVersion.Major)
	var minorPatch [4]byte
	buf.Write(minorPatch[:])
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], 10)
	buf.Write(length[:])
	buf.WriteString("short")

	_, _, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type payload struct {
		Name  string
		Count int
	}
	in := payload{Name: "store-a", Count: 42}

	encoded, err := Encode(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Decode(encoded, &out))
	assert.Equal(t, in, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var out struct{ X int }
	err := Decode([]byte("not gob data"), &out)
	require.Error(t, err)
	assert.Equal(t, dberrors.KindFraming, dberrors.GetKind(err))
}

func TestVersionIsCompatibleIgnoresMinorPatch(t *testing.T) {
	a := Version{Major: 1, Minor: 0, Patch: 0}
	b := Version{Major: 1, Minor: 9, Patch: 3}
	assert.True(t, a.IsCompatible(b))

	c := Version{Major: 2, Minor: 0, Patch: 0}
	assert.False(t, a.IsCompatible(c))
}

func TestVersionString(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3}
	assert.Equal(t, "1.2.3", v.String())
}
