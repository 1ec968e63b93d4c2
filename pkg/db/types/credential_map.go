package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CredentialMap stores a channel's credential field names mapped to their
// encrypted vault tokens. Persisted as jsonb; the plaintext never touches
// the database.
type CredentialMap map[string]string

// Value implements driver.Valuer.
func (m CredentialMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *CredentialMap) Scan(value any) error {
	if value == nil {
		*m = CredentialMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported credential map source %T", value)
	}
}

// Get returns the token stored for the field name, if any. Absence means
// "not set", not "set to empty".
func (m CredentialMap) Get(field string) (string, bool) {
	if m == nil {
		return "", false
	}
	token, ok := m[field]
	return token, ok
}
