// Command ascgreet is the single-string variant in AssemblyScript
// conventions: processUpdate returns a string, and aborts on empty input.
//
// Build with -buildmode=c-shared.
package main

import (
	"encoding/binary"
	"unicode/utf16"
	"unsafe"
)

//go:wasmimport env abort
func abort(msg, file, line, col uint32)

var objects = map[uint32][]byte{}

var lastResult uint32

//go:wasmexport __new
func newObject(size, id uint32) uint32 {
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0]))) + 4
	objects[ptr] = buf
	return ptr
}

//go:wasmexport __pin
func pin(ptr uint32) uint32 { return ptr }

//go:wasmexport __unpin
func unpin(ptr uint32) { delete(objects, ptr) }

func readString(ptr uint32) string {
	buf := objects[ptr]
	n := binary.LittleEndian.Uint32(buf)
	units := make([]uint16, n/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(buf[4+2*i:])
	}
	return string(utf16.Decode(units))
}

func newString(s string) uint32 {
	units := utf16.Encode([]rune(s))
	ptr := newObject(uint32(2*len(units)), 2)
	buf := objects[ptr]
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[4+2*i:], u)
	}
	return ptr
}

//go:wasmexport processUpdate
func processUpdate(ptr uint32) uint32 {
	if lastResult != 0 {
		delete(objects, lastResult)
	}
	input := readString(ptr)
	if input == "" {
		abort(newString("input must not be empty"), newString("assembly/index.ts"), 3, 5)
		panic("unreachable")
	}
	lastResult = newString("Hi " + input + ": 123")
	return lastResult
}

func main() {}
