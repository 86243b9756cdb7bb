package schema

import (
	"fmt"
	"strings"
)

// GenAssemblyScript renders f as AssemblyScript classes. Every field gets an
// initializer so instances can be built field by field; optional fields are
// `T | null = null`.
func GenAssemblyScript(f *File) string {
	var b strings.Builder
	for i, st := range f.Structs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "class %s {\n", st.Name)
		for _, fld := range st.Fields {
			if fld.Optional {
				fmt.Fprintf(&b, "  %s: %s | null = null;\n", fld.Name, fld.Type)
				continue
			}
			fmt.Fprintf(&b, "  %s: %s = %s;\n", fld.Name, fld.Type, asZero(fld.Type))
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func asZero(t Type) string {
	switch t.Kind {
	case KindString:
		return `""`
	case KindI32, KindI64:
		return "0"
	default:
		return "new " + t.Name + "()"
	}
}
