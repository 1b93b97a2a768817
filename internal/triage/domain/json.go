package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON stores raw JSON documents (sender/recipient lists, extraction
// results, audit payloads) in a jsonb column without forcing a schema.
type JSON json.RawMessage

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append(JSON{}, v...)
	case string:
		*j = JSON(v)
	default:
		return errors.New("unsupported type for JSON column")
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// MustJSON marshals v, panicking on failure. Only used for values the
// process itself constructed.
func MustJSON(v interface{}) JSON {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return JSON(data)
}
