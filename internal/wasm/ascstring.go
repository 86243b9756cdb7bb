package wasm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// ascStringID is the AssemblyScript runtime class id of String.
const ascStringID = 2

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// memory is the subset of guest linear memory the string codec needs.
// wazero's api.Memory satisfies it directly.
type memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	ReadUint32Le(offset uint32) (uint32, bool)
}

func encodeASCString(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

func decodeASCString(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readASCString reads a managed string. Its byte length is stored in the
// object header word right before ptr.
func readASCString(mem memory, ptr uint32) (string, error) {
	if ptr < 4 {
		return "", fmt.Errorf("string pointer %#x out of range", ptr)
	}
	n, ok := mem.ReadUint32Le(ptr - 4)
	if !ok {
		return "", fmt.Errorf("string header at %#x out of range", ptr-4)
	}
	if n%2 != 0 {
		return "", fmt.Errorf("string at %#x has odd byte length %d", ptr, n)
	}
	b, ok := mem.Read(ptr, n)
	if !ok {
		return "", fmt.Errorf("string body at %#x (%d bytes) out of range", ptr, n)
	}
	return decodeASCString(b)
}

// writeASCString allocates a managed string through alloc and copies s
// into it. The caller is responsible for pinning the result.
func writeASCString(mem memory, alloc func(size, id uint32) (uint32, error), s string) (uint32, error) {
	data, err := encodeASCString(s)
	if err != nil {
		return 0, err
	}
	ptr, err := alloc(uint32(len(data)), ascStringID)
	if err != nil {
		return 0, fmt.Errorf("allocate string: %w", err)
	}
	if !mem.Write(ptr, data) {
		return 0, fmt.Errorf("write string at %#x (%d bytes) out of range", ptr, len(data))
	}
	return ptr, nil
}

// byteMemory adapts a raw linear memory slice, as exposed by Wasmer, to the
// memory interface.
type byteMemory []byte

func (m byteMemory) Read(offset, n uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(n)
	if end > uint64(len(m)) {
		return nil, false
	}
	return m[offset:end], true
}

func (m byteMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m)) {
		return false
	}
	copy(m[offset:end], v)
	return true
}

func (m byteMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	b, ok := m.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}
