package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StringList is a []string persisted as a JSONB column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("model: unsupported source type for StringList")
	}
}

// ContainsFold reports whether the list holds s, case-insensitively.
func (l StringList) ContainsFold(s string) bool {
	for _, item := range l {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// ParamMap is a map[string]string persisted as a JSONB column.
type ParamMap map[string]string

// Value implements driver.Valuer.
func (m ParamMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *ParamMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("model: unsupported source type for ParamMap")
	}
}
