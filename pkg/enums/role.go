package enums

import (
	"fmt"
	"strings"
)

// Role is the marketplace audience a plan is sold to.
type Role string

const (
	// RoleSME is a small or medium enterprise buying skills.
	RoleSME Role = "sme"
	// RoleSDP is a skills development provider selling them.
	RoleSDP Role = "sdp"
)

var validRoles = []Role{
	RoleSME,
	RoleSDP,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Label returns the upper-case form used in processor catalog names.
func (r Role) Label() string {
	return strings.ToUpper(string(r))
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
