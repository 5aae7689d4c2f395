package types

import "fmt"

// Role classifies a container variable for attribute-requirement purposes.
type Role string

const (
	RoleData        Role = "data"
	RoleSupportData Role = "support_data"
	RoleMetadata    Role = "metadata"
	RoleEpoch       Role = "epoch"
	RoleSpectra     Role = "spectra"
)

// Roles lists every role in canonical order.
func Roles() []Role {
	return []Role{RoleData, RoleSupportData, RoleMetadata, RoleEpoch, RoleSpectra}
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleData, RoleSupportData, RoleMetadata, RoleEpoch, RoleSpectra:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown variable role %q", s)
}
