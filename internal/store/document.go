package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Document is the whole persisted state.
type Document struct {
	Users []User `json:"users"`
}

// User is a single record. Fields other than id, name and email are kept
// verbatim in Extra so a full-replace update can carry arbitrary keys.
type User struct {
	ID    int
	Name  *string
	Email *string
	Extra map[string]json.RawMessage
}

func (u User) MarshalJSON() ([]byte, error) {
	return u.marshal([]byte(strconv.Itoa(u.ID)))
}

// MarshalNullID renders the user with "id":null, the shape an update
// answers with when the path id is not a number.
func (u User) MarshalNullID() ([]byte, error) {
	return u.marshal([]byte("null"))
}

func (u User) marshal(id []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.Write(id)

	for _, f := range []struct {
		key string
		val *string
	}{{"name", u.Name}, {"email", u.Email}} {
		var value any
		switch raw, ok := u.Extra[f.key]; {
		case f.val != nil:
			value = *f.val
		case ok:
			value = raw
		default:
			continue
		}
		if err := writeField(&buf, f.key, value); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(u.Extra))
	for k := range u.Extra {
		if k != "name" && k != "email" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeField(&buf, k, u.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	buf.WriteByte(',')
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("user must be a JSON object")
	}

	id := 0
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
	}

	*u = UserFromFields(id, fields)
	return nil
}

// UserFromFields builds a user carrying id from decoded JSON object fields.
// Any id key among fields is ignored. String name and email values land in
// Name and Email; any other JSON value for them is kept verbatim in Extra.
func UserFromFields(id int, fields map[string]json.RawMessage) User {
	rest := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k != "id" {
			rest[k] = v
		}
	}

	u := User{ID: id, Name: takeString(rest, "name"), Email: takeString(rest, "email")}
	if len(rest) > 0 {
		u.Extra = rest
	}
	return u
}

// takeString removes key from fields when it holds a string or null. Other
// values stay in fields untouched.
func takeString(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		delete(fields, key)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	delete(fields, key)
	return &s
}

// Encode renders the document with two-space indentation.
func Encode(doc *Document) ([]byte, error) {
	out := doc
	if doc.Users == nil {
		out = &Document{Users: []User{}}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode parses a document. A missing users key yields an empty list.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Users == nil {
		doc.Users = []User{}
	}
	return &doc, nil
}

// StringPtr is a convenience for building users in code.
func StringPtr(s string) *string {
	return &s
}
