package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_StableKeyOrderAndIndent(t *testing.T) {
	doc := &Document{Users: []User{
		{
			ID:    1,
			Name:  StringPtr("Ada"),
			Email: StringPtr("ada@example.com"),
			Extra: map[string]json.RawMessage{
				"zeta":  json.RawMessage(`true`),
				"alpha": json.RawMessage(`{"b": 1}`),
			},
		},
	}}

	data, err := Encode(doc)
	require.NoError(t, err)

	want := `{
  "users": [
    {
      "id": 1,
      "name": "Ada",
      "email": "ada@example.com",
      "alpha": {
        "b": 1
      },
      "zeta": true
    }
  ]
}`
	assert.Equal(t, want, string(data))
}

func TestEncode_NilUsersWritesEmptyList(t *testing.T) {
	data, err := Encode(&Document{})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"users\": []\n}", string(data))
}

func TestEncode_OmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(User{ID: 4, Name: StringPtr("B")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":4,"name":"B"}`, string(data))
	assert.NotContains(t, string(data), "email")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantUsers int
		wantErr   bool
	}{
		{"empty list", `{"users": []}`, 0, false},
		{"missing users key", `{}`, 0, false},
		{"two users", `{"users": [{"id": 1, "name": "a"}, {"id": 2}]}`, 2, false},
		{"not json", `users: []`, 0, true},
		{"truncated", `{"users": [{"id": 1`, 0, true},
		{"user not an object", `{"users": [1]}`, 0, true},
		{"name not a string", `{"users": [{"id": 1, "name": 5}]}`, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, doc.Users, tt.wantUsers)
			assert.NotNil(t, doc.Users)
		})
	}
}

func TestDecode_NullFieldsReadAsAbsent(t *testing.T) {
	doc, err := Decode([]byte(`{"users": [{"id": 3, "name": null, "email": "x@y.z"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Users, 1)

	u := doc.Users[0]
	assert.Equal(t, 3, u.ID)
	assert.Nil(t, u.Name)
	require.NotNil(t, u.Email)
	assert.Equal(t, "x@y.z", *u.Email)
	assert.Empty(t, u.Extra)
}

func TestUserFromFields_NonStringNameAndEmailKept(t *testing.T) {
	u := UserFromFields(7, map[string]json.RawMessage{
		"id":    json.RawMessage(`99`),
		"zone":  json.RawMessage(`"eu"`),
		"email": json.RawMessage(`true`),
		"name":  json.RawMessage(`["a","b"]`),
	})

	assert.Equal(t, 7, u.ID)
	assert.Nil(t, u.Name)
	assert.Nil(t, u.Email)

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Equal(t, `{"id":7,"name":["a","b"],"email":true,"zone":"eu"}`, string(data))

	var back User
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, u, back)
}

func TestMarshalNullID(t *testing.T) {
	data, err := User{ID: 3, Name: StringPtr("X")}.MarshalNullID()
	require.NoError(t, err)
	assert.Equal(t, `{"id":null,"name":"X"}`, string(data))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	doc := &Document{Users: []User{
		{ID: 1, Name: StringPtr("A"), Email: StringPtr("a@x.com")},
		{ID: 3, Name: StringPtr("C")},
		{ID: 2, Extra: map[string]json.RawMessage{"role": json.RawMessage(`"admin"`)}},
	}}

	data, err := Encode(doc)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}
