package domain

import (
	"encoding/json"
	"strings"
)

// Role is the coarse permission tag the backend attaches to a user. It only
// drives view gating in the portal; enforcement lives in the backend.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Roles lists every role the backend may report.
var Roles = []Role{RolePatient, RoleDoctor, RoleAdmin}

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User is the descriptor persisted next to the session token.
type User struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// Valid reports whether the descriptor can be trusted structurally.
func (u User) Valid() bool {
	return u.ID > 0 && u.Role.Valid()
}

// LoginResult is the payload the backend returns from login and registration.
type LoginResult struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Role   Role   `json:"role"`
}

// User returns the descriptor carried by the login response.
func (r LoginResult) User() User {
	return User{ID: r.UserID, Role: r.Role}
}

// EncodeUser serialises u the way token stores persist it.
func EncodeUser(u User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeUser parses a persisted user entry. Empty or unreadable entries
// decode to nil; the persisted schema is trusted, not repaired.
func DecodeUser(s string) *User {
	if s == "" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return nil
	}
	return &u
}
