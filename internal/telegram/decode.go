package telegram

import "encoding/json"

// DecodeError reports an update payload that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode update: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses the JSON encoding of an Update. Absent fields map to their
// unset state; only the structural shape of the object is required.
func Decode(text string) (Update, error) {
	var u Update
	if err := json.Unmarshal([]byte(text), &u); err != nil {
		return Update{}, &DecodeError{Err: err}
	}
	return u, nil
}

// Encode is the inverse of Decode.
func Encode(u Update) ([]byte, error) {
	return json.Marshal(u)
}
