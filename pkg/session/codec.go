package session

import (
	"encoding/json"
	"errors"
)

// Primary-tier values are JSON blobs; the fallback tier stores typed
// rows instead, so these codecs only cross the Redis boundary.

func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrNotFound, err)
	}
	return &s, nil
}

func encodeRememberToken(t *RememberToken) ([]byte, error) {
	return json.Marshal(t)
}

func decodeRememberToken(data []byte) (*RememberToken, error) {
	var t RememberToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Join(ErrNotFound, err)
	}
	return &t, nil
}
