package model

import (
    "database/sql/driver"
    "encoding/json"
    "fmt"
)

// StringList is a []string persisted as a JSON array column.
type StringList []string

// Value implements driver.Valuer. A nil list is stored as [].
func (l StringList) Value() (driver.Value, error) {
    if l == nil {
        return "[]", nil
    }
    b, err := json.Marshal([]string(l))
    if err != nil {
        return nil, err
    }
    return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
    return scanJSON(src, (*[]string)(l))
}

// MarshalJSON keeps empty lists as [] instead of null on the wire.
func (l StringList) MarshalJSON() ([]byte, error) {
    if l == nil {
        return []byte("[]"), nil
    }
    return json.Marshal([]string(l))
}

func (l StringList) Contains(s string) bool {
    for _, v := range l {
        if v == s {
            return true
        }
    }
    return false
}

// IntList is a []int persisted as a JSON array column.
type IntList []int

func (l IntList) Value() (driver.Value, error) {
    if l == nil {
        return "[]", nil
    }
    b, err := json.Marshal([]int(l))
    if err != nil {
        return nil, err
    }
    return string(b), nil
}

func (l *IntList) Scan(src any) error {
    return scanJSON(src, (*[]int)(l))
}

func (l IntList) MarshalJSON() ([]byte, error) {
    if l == nil {
        return []byte("[]"), nil
    }
    return json.Marshal([]int(l))
}

func (l IntList) Contains(n int) bool {
    for _, v := range l {
        if v == n {
            return true
        }
    }
    return false
}

func scanJSON(src any, dst any) error {
    var raw []byte
    switch v := src.(type) {
    case nil:
        return nil
    case []byte:
        raw = v
    case string:
        raw = []byte(v)
    default:
        return fmt.Errorf("json column: unsupported type %T", src)
    }
    if len(raw) == 0 {
        return nil
    }
    return json.Unmarshal(raw, dst)
}
