package telegram

import "encoding/json"

// Update is the inbound event envelope. It carries at most one message.
type Update struct {
	UpdateID int64             `json:"update_id"`
	Message  Optional[Message] `json:"message"`
}

// Message is a chat message. Chat is always present; a missing chat object
// decodes to the zero chat.
type Message struct {
	ID   int64            `json:"message_id"`
	Chat Chat             `json:"chat"`
	From Optional[User]   `json:"from"`
	Text Optional[string] `json:"text"`
}

// UnmarshalJSON accepts id when message_id is absent.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		MessageID *int64 `json:"message_id"`
		ShortID   *int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	switch {
	case aux.MessageID != nil:
		m.ID = *aux.MessageID
	case aux.ShortID != nil:
		m.ID = *aux.ShortID
	}
	return nil
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// User is a message sender.
type User struct {
	ID        int64            `json:"id"`
	FirstName string           `json:"first_name"`
	LastName  Optional[string] `json:"last_name"`
}
