package schema

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"unicode"
)

const goOptional = `
// Optional holds a value that may be absent. JSON null and a missing key
// both decode to an absent value.
type Optional[T any] struct {
	Value T
	Set   bool
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	*o = Optional[T]{Set: true}
	return json.Unmarshal(data, &o.Value)
}
`

// GenGo renders f as Go structs with JSON tags. Optional fields use an
// Optional[T] type emitted into the same file.
func GenGo(f *File, pkg string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by karajan gen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n", pkg)

	optional := hasOptional(f)
	if optional {
		buf.WriteString("\nimport (\n\t\"bytes\"\n\t\"encoding/json\"\n)\n")
	}

	for _, st := range f.Structs {
		fmt.Fprintf(&buf, "\ntype %s struct {\n", goIdent(st.Name))
		for _, fld := range st.Fields {
			typ := goType(fld.Type)
			if fld.Optional {
				typ = "Optional[" + typ + "]"
			}
			fmt.Fprintf(&buf, "\t%s %s `json:%q`\n", goIdent(fld.Name), typ, fld.Name)
		}
		buf.WriteString("}\n")
	}
	if optional {
		buf.WriteString(goOptional)
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated go: %w", err)
	}
	return out, nil
}

func hasOptional(f *File) bool {
	for _, st := range f.Structs {
		for _, fld := range st.Fields {
			if fld.Optional {
				return true
			}
		}
	}
	return false
}

func goType(t Type) string {
	switch t.Kind {
	case KindString:
		return "string"
	case KindI32:
		return "int32"
	case KindI64:
		return "int64"
	default:
		return goIdent(t.Name)
	}
}

var initialisms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"api":  "API",
	"json": "JSON",
	"http": "HTTP",
}

// goIdent turns snake_case into an exported Go name: update_id -> UpdateID.
func goIdent(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		if up, ok := initialisms[strings.ToLower(part)]; ok {
			b.WriteString(up)
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}
