// Package canon implements the RFC-8785-compatible canonical JSON byte
// encoding every hash, id, and signature in this system is derived from.
//
// Object keys are sorted by UTF-8 byte order, there is no insignificant
// whitespace, HTML escaping is disabled, and non-finite numbers are a hard
// failure. The encoder never mutates its input; two structurally-equal
// inputs produce byte-identical output on any platform.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// Canonicalize returns the canonical byte encoding of v.
//
// v is first passed through a standard json.Marshal so struct tags are
// respected, then decoded into a generic tree with json.Number preserved,
// then re-encoded with a deterministic recursive walk. This two-pass
// approach lets callers hand in either Go structs or already-generic
// map[string]interface{} trees and get the same output either way.
func Canonicalize(v interface{}) ([]byte, error) {
	if err := rejectNonFinite(v); err != nil {
		return nil, err
	}

	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: intermediate decode failed: %w", err)
	}

	return marshalRecursive(generic)
}

// CanonicalizeString returns Canonicalize as a string.
func CanonicalizeString(v interface{}) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses canonical (or any valid) JSON bytes into a generic tree with
// numbers preserved as json.Number, for round-trip testing.
func Decode(b []byte) (interface{}, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "canon: decode failed: %v", err)
	}
	return generic, nil
}

// rejectNonFinite walks v (before the stdlib json.Marshal pass, which would
// otherwise surface NaN/Inf as an opaque *json.UnsupportedValueError) so the
// failure is reported under the closed nonfinite_number code.
func rejectNonFinite(v interface{}) error {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return pbierr.New(pbierr.NonfiniteNumber, "number is not finite")
		}
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return pbierr.New(pbierr.NonfiniteNumber, "number is not finite")
		}
	case []interface{}:
		for _, elem := range t {
			if err := rejectNonFinite(elem); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		for _, elem := range t {
			if err := rejectNonFinite(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func marshalRecursive(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		f, err := t.Float64()
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return nil, pbierr.New(pbierr.NonfiniteNumber, "number is not finite")
		}
		return []byte(t.String()), nil
	case string:
		return encodeString(t)
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalRecursive(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := encodeString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalRecursive(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("canon: unsupported type %T in canonical tree", v)
	}
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("canon: string encode failed: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
