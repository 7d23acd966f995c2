package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSON type for flexible storage
type JSON map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(j))
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	bytes, err := scanBytes(value)
	if err != nil || bytes == nil {
		return err
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// LogEntry is one line of a payment log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

func (e LogEntry) String() string {
	return e.Time.Format(time.RFC3339) + " " + e.Message
}

// PaymentLog is the append-only audit trail of a payment, stored as jsonb.
type PaymentLog []LogEntry

// Value implements the driver.Valuer interface
func (l PaymentLog) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]LogEntry(l))
}

// Scan implements the sql.Scanner interface
func (l *PaymentLog) Scan(value interface{}) error {
	bytes, err := scanBytes(value)
	if err != nil || bytes == nil {
		return err
	}
	var entries []LogEntry
	if err := json.Unmarshal(bytes, &entries); err != nil {
		return err
	}
	*l = entries
	return nil
}

// Contains reports whether any message contains substr.
func (l PaymentLog) Contains(substr string) bool {
	for _, e := range l {
		if strings.Contains(strings.ToLower(e.Message), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb value of type %T", value)
	}
}
