// Package schema implements the .krj record schema language shared by the
// host and its guests, with Go and AssemblyScript generators and a JSON
// validator.
//
//	struct Message {
//	    id: i64,
//	    chat: Chat,
//	    from: User?,
//	}
package schema

import _ "embed"

// Telegram is the bundled schema for the Bot API records guests receive.
//
//go:embed tg.krj
var Telegram string

type File struct {
	Structs []*Struct
}

// Lookup returns the struct named name, or nil.
func (f *File) Lookup(name string) *Struct {
	for _, s := range f.Structs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

type Struct struct {
	Name   string
	Fields []*Field
	Pos    Pos
}

type Field struct {
	Name     string
	Type     Type
	Optional bool
	Pos      Pos
}

type Kind int

const (
	KindStruct Kind = iota
	KindString
	KindI32
	KindI64
)

// Type is a primitive or a reference to another struct by name.
type Type struct {
	Kind Kind
	Name string
}

func (t Type) String() string {
	switch t.Kind {
	case KindString:
		return "string"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	default:
		return t.Name
	}
}

type Pos struct {
	Line int
	Col  int
}
