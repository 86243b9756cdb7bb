// Package reply is the reference bot logic: greet the sender of every
// message and echo what they said.
package reply

import (
	"context"
	"fmt"

	"github.com/lsm/karajan/internal/host"
	"github.com/lsm/karajan/internal/telegram"
)

const unknownSender = "Unknown"

// BuildReply renders the greeting for msg. The id in the text is the chat
// id, not the sender's; absent text renders as "null".
func BuildReply(msg telegram.Message) string {
	name := unknownSender
	if from, ok := msg.From.Get(); ok {
		name = from.FirstName
	}
	return fmt.Sprintf("Hello, %s, your id is %d, you said %s",
		name, msg.Chat.ID, msg.Text.OrElse("null"))
}

// ProcessUpdate sends one reply for an update that carries a message and
// does nothing otherwise.
func ProcessUpdate(ctx context.Context, h host.Host, u telegram.Update) {
	msg, ok := u.Message.Get()
	if !ok {
		return
	}
	h.SendMessage(ctx, msg.Chat.ID, BuildReply(msg))
}

// ProcessUpdateJSON decodes text before processing it. A malformed payload
// returns a *telegram.DecodeError and sends nothing.
func ProcessUpdateJSON(ctx context.Context, h host.Host, text string) error {
	u, err := telegram.Decode(text)
	if err != nil {
		return err
	}
	ProcessUpdate(ctx, h, u)
	return nil
}
