package session

import "encoding/json"

// recordWire mirrors Record but keeps loosely typed fields as raw JSON so a
// single malformed field rejects the whole record instead of panicking or
// silently zeroing it.
type recordWire struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    json.RawMessage `json:"expires_at"`
	User         *userWire       `json:"user"`
}

type userWire struct {
	ID    json.RawMessage `json:"id"`
	Email json.RawMessage `json:"email"`
}

// DecodeRecord parses a serialized session record. It returns nil, never an
// error, when raw is empty, not well-formed JSON, or any required field has
// the wrong shape: access/refresh tokens must be non-empty strings,
// expires_at must be numeric, user.id must be a non-empty string. Unknown
// fields are ignored. A non-string user.email decodes as empty.
func DecodeRecord(raw []byte) *Record {
	if len(raw) == 0 {
		return nil
	}

	var wire recordWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	if wire.AccessToken == "" || wire.RefreshToken == "" || wire.User == nil {
		return nil
	}

	var expiresAt float64
	if err := json.Unmarshal(wire.ExpiresAt, &expiresAt); err != nil {
		return nil
	}

	var userID string
	if err := json.Unmarshal(wire.User.ID, &userID); err != nil || userID == "" {
		return nil
	}

	var email string
	if len(wire.User.Email) > 0 {
		// Lenient: anything other than a string means "no email".
		_ = json.Unmarshal(wire.User.Email, &email)
	}

	return &Record{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		ExpiresAt:    int64(expiresAt),
		User:         User{ID: userID, Email: email},
	}
}

// EncodeRecord serializes a record deterministically. The output round-trips
// exactly through DecodeRecord.
func EncodeRecord(rec Record) []byte {
	// Record contains only marshalable fields; Marshal cannot fail here.
	data, _ := json.Marshal(rec)
	return data
}
