package store

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/xqopt/internal/ir"
)

// marshalEncoding converts a plan encoding to canonical JSON TEXT.
func marshalEncoding(enc ir.Object) (string, error) {
	data, err := ir.MarshalCanonical(enc)
	if err != nil {
		return "", errors.Wrap(err, "marshal plan encoding")
	}
	return string(data), nil
}

// unmarshalEncoding parses a stored plan encoding.
func unmarshalEncoding(text string) (ir.Object, error) {
	v, err := ir.UnmarshalValue([]byte(text))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal plan encoding")
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, errors.Newf("plan encoding is %T, want object", v)
	}
	return obj, nil
}
