package auth

import (
	"slices"
	"sort"
)

// Claims is the role/permission snapshot embedded in a token at issuance.
// Authorization decisions made from it reflect the grants held at login or
// refresh time, by contract, until the next refresh.
type Claims struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasRole checks the snapshot for a role code.
func (c Claims) HasRole(code string) bool {
	return slices.Contains(c.Roles, code)
}

// HasPermission checks the snapshot for a permission code.
func (c Claims) HasPermission(code string) bool {
	return slices.Contains(c.Permissions, code)
}

// IsEmpty reports whether the snapshot carries no grants at all.
func (c Claims) IsEmpty() bool {
	return len(c.Roles) == 0 && len(c.Permissions) == 0
}

// Normalize returns a copy with both sets deduplicated and sorted. The
// deterministic order is for reproducibility, not security.
func (c Claims) Normalize() Claims {
	return Claims{
		Roles:       normalizeCodes(c.Roles),
		Permissions: normalizeCodes(c.Permissions),
	}
}

func normalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}

	if len(out) == 0 {
		return nil
	}

	sort.Strings(out)
	return out
}
