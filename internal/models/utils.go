package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is a parsed header address stored as jsonb.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// UnknownAddress stands in for a header address that could not be resolved.
var UnknownAddress = Address{Address: "unknown", Name: ""}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// String renders `Name <address>` or just the address when there is no name.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

type AddressList []Address

func (l AddressList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *AddressList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func (l AddressList) Addresses() []string {
	out := make([]string, 0, len(l))
	for _, a := range l {
		out = append(out, a.Address)
	}
	return out
}

// Header is one raw header line; HeaderList keeps wire order and duplicates.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type HeaderList []Header

func (l HeaderList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *HeaderList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Get returns the first value for key, matched case-insensitively.
func (l HeaderList) Get(key string) string {
	for _, h := range l {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}

func scanJSON(value interface{}, target interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, target)
	case string:
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}
