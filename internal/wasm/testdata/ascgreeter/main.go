// Command ascgreeter is a reactor that speaks the AssemblyScript guest
// conventions: managed UTF-16 strings allocated through __new with the
// byte length in the header word before the pointer.
//
// Build with -buildmode=c-shared.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unsafe"
)

//go:wasmimport host sendMessage
func hostSendMessage(chatID int64, str uint32)

// objects keeps every allocation reachable until it is unpinned.
var objects = map[uint32][]byte{}

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

type update struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			FirstName string `json:"first_name"`
		} `json:"from"`
		Text *string `json:"text"`
	} `json:"message"`
}

var calls int

//go:wasmexport processUpdate
func processUpdate(ptr uint32) {
	calls++
	var u update
	if err := json.Unmarshal([]byte(readString(ptr)), &u); err != nil || u.Message == nil {
		return
	}
	name := "Unknown"
	if u.Message.From != nil {
		name = u.Message.From.FirstName
	}
	text := "null"
	if u.Message.Text != nil {
		text = *u.Message.Text
	}
	reply := newString(fmt.Sprintf("Hello, %s, your id is %d, you said %s (call %d)", name, u.Message.Chat.ID, text, calls))
	hostSendMessage(u.Message.Chat.ID, reply)
	unpin(reply)
}

func main() {}
