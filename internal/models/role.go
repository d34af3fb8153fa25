package models

import "fmt"

// Role tags a message with its author. Only the two values below are ever
// persisted; the store rejects anything else before writing.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the permitted roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q (want %q or %q)", s, RoleUser, RoleAssistant)
	}
	return r, nil
}
