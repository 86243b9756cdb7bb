package schema

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// SyntaxError reports a malformed or inconsistent schema.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parse reads a .krj schema. Besides syntax it rejects duplicate struct or
// field names and references to undeclared structs.
func Parse(src string) (*File, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanComments | scanner.SkipComments
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.scanErr == nil {
			p.scanErr = &SyntaxError{Line: s.Pos().Line, Col: s.Pos().Column, Msg: msg}
		}
	}
	p.next()

	f := &File{}
	for p.tok != scanner.EOF {
		st, err := p.parseStruct()
		if err != nil {
			return nil, err
		}
		f.Structs = append(f.Structs, st)
	}
	if p.scanErr != nil {
		return nil, p.scanErr
	}
	if err := check(f); err != nil {
		return nil, err
	}
	return f, nil
}

type parser struct {
	s       scanner.Scanner
	tok     rune
	scanErr *SyntaxError
}

func (p *parser) next() {
	p.tok = p.s.Scan()
}

func (p *parser) pos() Pos {
	return Pos{Line: p.s.Position.Line, Col: p.s.Position.Column}
}

func (p *parser) errorf(pos Pos, format string, args ...any) *SyntaxError {
	if p.scanErr != nil {
		return p.scanErr
	}
	return &SyntaxError{Line: pos.Line, Col: pos.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(want string) *SyntaxError {
	found := "end of input"
	switch p.tok {
	case scanner.EOF:
	case scanner.Ident:
		found = strconv.Quote(p.s.TokenText())
	default:
		found = strconv.QuoteRune(p.tok)
	}
	return p.errorf(p.pos(), "expected %s, found %s", want, found)
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.unexpected(strconv.QuoteRune(tok))
	}
	p.next()
	return nil
}

func (p *parser) ident(what string) (string, error) {
	if p.tok != scanner.Ident {
		return "", p.unexpected(what)
	}
	name := p.s.TokenText()
	p.next()
	return name, nil
}

func (p *parser) parseStruct() (*Struct, error) {
	pos := p.pos()
	if p.tok != scanner.Ident || p.s.TokenText() != "struct" {
		return nil, p.unexpected(`"struct"`)
	}
	p.next()

	name, err := p.ident("struct name")
	if err != nil {
		return nil, err
	}
	if err := p.expect('{'); err != nil {
		return nil, err
	}

	st := &Struct{Name: name, Pos: pos}
	for p.tok != '}' {
		fld, err := p.parseField()
		if err != nil {
			return nil, err
		}
		st.Fields = append(st.Fields, fld)
		if p.tok == ',' {
			p.next()
			continue
		}
		if p.tok != '}' {
			return nil, p.unexpected("',' or '}'")
		}
	}
	p.next()
	return st, nil
}

func (p *parser) parseField() (*Field, error) {
	pos := p.pos()
	name, err := p.ident("field name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(':'); err != nil {
		return nil, err
	}
	typeName, err := p.ident("field type")
	if err != nil {
		return nil, err
	}

	fld := &Field{Name: name, Type: parseType(typeName), Pos: pos}
	if p.tok == '?' {
		fld.Optional = true
		p.next()
	}
	return fld, nil
}

func parseType(name string) Type {
	switch name {
	case "string":
		return Type{Kind: KindString}
	case "i32":
		return Type{Kind: KindI32}
	case "i64":
		return Type{Kind: KindI64}
	default:
		return Type{Kind: KindStruct, Name: name}
	}
}

func check(f *File) error {
	structs := make(map[string]bool, len(f.Structs))
	for _, st := range f.Structs {
		if structs[st.Name] {
			return &SyntaxError{Line: st.Pos.Line, Col: st.Pos.Col, Msg: fmt.Sprintf("duplicate struct %s", st.Name)}
		}
		structs[st.Name] = true
	}
	for _, st := range f.Structs {
		fields := make(map[string]bool, len(st.Fields))
		for _, fld := range st.Fields {
			if fields[fld.Name] {
				return &SyntaxError{Line: fld.Pos.Line, Col: fld.Pos.Col, Msg: fmt.Sprintf("duplicate field %s.%s", st.Name, fld.Name)}
			}
			fields[fld.Name] = true
			if fld.Type.Kind == KindStruct && !structs[fld.Type.Name] {
				return &SyntaxError{Line: fld.Pos.Line, Col: fld.Pos.Col, Msg: fmt.Sprintf("unknown type %s", fld.Type.Name)}
			}
		}
	}
	return nil
}
