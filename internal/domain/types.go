package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a JSON array persisted in a TEXT column.
type StringList []string

func (l *StringList) Scan(src any) error {
	b, err := textBytes(src)
	if err != nil || len(b) == 0 {
		*l = StringList{}
		return err
	}
	return json.Unmarshal(b, (*[]string)(l))
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

// Attributes is a JSON object persisted in a TEXT column.
type Attributes map[string]string

func (a *Attributes) Scan(src any) error {
	b, err := textBytes(src)
	if err != nil || len(b) == 0 {
		*a = Attributes{}
		return err
	}
	return json.Unmarshal(b, (*map[string]string)(a))
}

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(a))
	return string(b), err
}

func textBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
