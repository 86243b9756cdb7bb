package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Codec checks JSON documents against one struct of a schema.
type Codec struct {
	file *File
	root *Struct
}

// NewCodec creates a codec for the struct named root.
func NewCodec(f *File, root string) (*Codec, error) {
	st := f.Lookup(root)
	if st == nil {
		return nil, fmt.Errorf("schema has no struct %s", root)
	}
	return &Codec{file: f, root: st}, nil
}

// Decode for JSON is a passthrough that rejects invalid documents.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON data")
	}
	return data, nil
}

// Validate checks that data is an object with every non-optional field of
// the root struct, recursively, and that present fields have the declared
// types. Unknown fields are allowed.
func (c *Codec) Validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return fmt.Errorf("unmarshal JSON for validation: %w", err)
	}
	return c.checkStruct(c.root, parsed, "")
}

func (c *Codec) checkStruct(st *Struct, val any, path string) error {
	obj, ok := val.(map[string]any)
	if !ok {
		return fieldErr(path, "expected object %s, got %s", st.Name, jsonKind(val))
	}
	for _, fld := range st.Fields {
		sub := fld.Name
		if path != "" {
			sub = path + "." + fld.Name
		}
		v, exists := obj[fld.Name]
		if !exists || v == nil {
			if fld.Optional {
				continue
			}
			return fieldErr(sub, "missing required field")
		}
		if err := c.checkType(fld.Type, v, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) checkType(t Type, val any, path string) error {
	switch t.Kind {
	case KindString:
		if _, ok := val.(string); !ok {
			return fieldErr(path, "expected string, got %s", jsonKind(val))
		}
	case KindI32:
		return checkInt(val, path, math.MinInt32, math.MaxInt32, "i32")
	case KindI64:
		return checkInt(val, path, math.MinInt64, math.MaxInt64, "i64")
	default:
		return c.checkStruct(c.file.Lookup(t.Name), val, path)
	}
	return nil
}

func checkInt(val any, path string, lo, hi int64, name string) error {
	n, ok := val.(json.Number)
	if !ok {
		return fieldErr(path, "expected %s, got %s", name, jsonKind(val))
	}
	i, err := n.Int64()
	if err != nil || i < lo || i > hi {
		return fieldErr(path, "%s out of range for %s", n, name)
	}
	return nil
}

func fieldErr(path, format string, args ...any) error {
	if path == "" {
		return fmt.Errorf(format, args...)
	}
	return fmt.Errorf("field %q: %s", path, fmt.Sprintf(format, args...))
}

func jsonKind(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", val)
	}
}
