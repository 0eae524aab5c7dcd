package model

import "strings"

// User is the authenticated identity shown by the portal
type User struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName returns "First Last" when known, else the email
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// SameIdentity reports whether a and b refer to the same account (both nil counts)
func SameIdentity(a, b *User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Email == b.Email
}
