// Package host implements the capabilities a bot guest can call back into:
// sending a chat message and a small key/value store.
package host

import "context"

// Host is the capability set handed to bot logic. None of the methods
// report failure to the caller; implementations log what goes wrong.
type Host interface {
	SendMessage(ctx context.Context, chatID int64, text string)
	StoreJSON(ctx context.Context, key, value string)
	// ReadJSON returns "" for a missing key.
	ReadJSON(ctx context.Context, key string) string
}
