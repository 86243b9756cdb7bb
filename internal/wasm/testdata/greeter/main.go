// Command greeter replies to every message with a greeting, using the
// WASI flavor of the host imports.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unsafe"
)

//go:wasmimport host sendMessage
func hostSendMessage(chatID int64, ptr unsafe.Pointer, n uint32)

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

func sendMessage(chatID int64, text string) {
	hostSendMessage(chatID, unsafe.Pointer(unsafe.StringData(text)), uint32(len(text)))
}

func main() {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var u update
	if err := json.Unmarshal(input, &u); err != nil {
		fmt.Fprintln(os.Stderr, "decode update:", err)
		os.Exit(1)
	}
	if u.Message == nil {
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
	reply := fmt.Sprintf("Hello, %s, your id is %d, you said %s", name, u.Message.Chat.ID, text)
	sendMessage(u.Message.Chat.ID, reply)
	fmt.Print(reply)
}
