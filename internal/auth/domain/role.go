package domain

import "time"

type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

type Permission struct {
	ID        string
	Name      string // e.g. "profile:read"
	Resource  string
	Action    string
	CreatedAt time.Time
}

// RoleNames returns the names of the given roles in order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}

// PermissionNames returns permission names deduplicated by name, keeping the
// first occurrence.
func PermissionNames(perms []Permission) []string {
	seen := make(map[string]struct{}, len(perms))
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}
