package wire

import (
	"bytes"
	"encoding/gob"

	"github.com/ahnlich/ahnlich-db/internal/dberrors"
)

// Encode gob-encodes v into a payload suitable for WriteFrame. The frame
// header (magic/version/length) is fixed-width per ReadFrame/WriteFrame;
// the payload itself uses gob, the same encoding the persistence snapshot
// format uses, so one registered type set covers both paths.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, dberrors.Wrap(dberrors.KindInternal, err)
	}
	return buf.Bytes(), nil
}

// Decode gob-decodes a payload produced by Encode into v.
func Decode(payload []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return dberrors.Wrap(dberrors.KindFraming, err)
	}
	return nil
}
