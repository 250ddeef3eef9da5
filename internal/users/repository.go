package users

import (
	"github.com/brattlof/usersdb/internal/store"
)

// The repository functions operate on a document the caller already holds.
// They never touch storage.

func FindByID(doc *store.Document, id int) (*store.User, bool) {
	for i := range doc.Users {
		if doc.Users[i].ID == id {
			return &doc.Users[i], true
		}
	}
	return nil, false
}

// FindIndexByID returns -1 when no user has the id.
func FindIndexByID(doc *store.Document, id int) int {
	for i, u := range doc.Users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func Append(doc *store.Document, u store.User) *store.Document {
	doc.Users = append(doc.Users, u)
	return doc
}

// ReplaceAt swaps the element at index. Out of range indexes leave the
// sequence untouched.
func ReplaceAt(doc *store.Document, index int, u store.User) *store.Document {
	if index < 0 || index >= len(doc.Users) {
		return doc
	}
	doc.Users[index] = u
	return doc
}

// RemoveByID drops every user carrying id, not only the first.
func RemoveByID(doc *store.Document, id int) *store.Document {
	kept := make([]store.User, 0, len(doc.Users))
	for _, u := range doc.Users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	doc.Users = kept
	return doc
}

// NextID is the current count plus one. Ids freed by deletes can therefore
// be handed out again.
func NextID(doc *store.Document) int {
	return len(doc.Users) + 1
}
