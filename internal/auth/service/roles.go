package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
	"github.com/aussiebroadwan/doorman/internal/auth/store"
	"github.com/aussiebroadwan/doorman/pkg/idx"
	"github.com/aussiebroadwan/doorman/pkg/slogx"
)

// RolesService administers roles, permissions and their assignments.
type RolesService struct {
	Store        store.Store
	StoreTimeout time.Duration
	Now          func() time.Time
}

// ListRoles returns all roles in the system.
func (s *RolesService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := call(ctx, s.StoreTimeout, s.Store.Roles().ListRoles)
	if err != nil {
		return nil, unavailable("list roles", err)
	}
	return roles, nil
}

func (s *RolesService) CreateRole(ctx context.Context, name, description string) (domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, fmt.Errorf("%w: role name is required", ErrValidationFailed)
	}

	now := clock(s.Now).now()
	role := domain.Role{ID: idx.NewAt(now).String(), Name: name, Description: description, CreatedAt: now}

	err := exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Roles().CreateRole(ctx, role)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, fmt.Errorf("role %q: %w", name, ErrAlreadyExists)
		}
		return domain.Role{}, unavailable("create role", err)
	}
	return role, nil
}

// CreatePermission creates a "resource:action" permission.
func (s *RolesService) CreatePermission(ctx context.Context, name string) (domain.Permission, error) {
	resource, action, ok := strings.Cut(strings.TrimSpace(name), ":")
	if !ok || resource == "" || action == "" {
		return domain.Permission{}, fmt.Errorf("%w: permission must look like resource:action", ErrValidationFailed)
	}

	now := clock(s.Now).now()
	perm := domain.Permission{
		ID:        idx.NewAt(now).String(),
		Name:      resource + ":" + action,
		Resource:  resource,
		Action:    action,
		CreatedAt: now,
	}

	err := exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Roles().CreatePermission(ctx, perm)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Permission{}, fmt.Errorf("permission %q: %w", perm.Name, ErrAlreadyExists)
		}
		return domain.Permission{}, unavailable("create permission", err)
	}
	return perm, nil
}

// AssignRole gives the user with email the named role. Idempotent.
func (s *RolesService) AssignRole(ctx context.Context, email, roleName string) error {
	user, role, err := s.userAndRole(ctx, email, roleName)
	if err != nil {
		return err
	}

	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Roles().AssignRole(ctx, user.ID, role.ID, clock(s.Now).now())
	})
	if err != nil {
		return unavailable("assign role", err)
	}

	slogx.FromContext(ctx).Info("role assigned", "user_id", user.ID, "role", role.Name)
	return nil
}

// UnassignRole removes the named role from the user. Idempotent.
func (s *RolesService) UnassignRole(ctx context.Context, email, roleName string) error {
	user, role, err := s.userAndRole(ctx, email, roleName)
	if err != nil {
		return err
	}

	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Roles().UnassignRole(ctx, user.ID, role.ID)
	})
	if err != nil {
		return unavailable("unassign role", err)
	}

	slogx.FromContext(ctx).Info("role unassigned", "user_id", user.ID, "role", role.Name)
	return nil
}

func (s *RolesService) GrantPermission(ctx context.Context, roleName, permName string) error {
	role, perm, err := s.roleAndPermission(ctx, roleName, permName)
	if err != nil {
		return err
	}
	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Roles().GrantPermission(ctx, role.ID, perm.ID)
	})
	if err != nil {
		return unavailable("grant permission", err)
	}
	return nil
}

func (s *RolesService) RevokePermission(ctx context.Context, roleName, permName string) error {
	role, perm, err := s.roleAndPermission(ctx, roleName, permName)
	if err != nil {
		return err
	}
	err = exec(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Roles().RevokePermission(ctx, role.ID, perm.ID)
	})
	if err != nil {
		return unavailable("revoke permission", err)
	}
	return nil
}

// Permissions returns the deduplicated union of the permissions granted by
// the user's roles, ordered by name.
func (s *RolesService) Permissions(ctx context.Context, userID string) ([]string, error) {
	perms, err := call(ctx, s.StoreTimeout, func(ctx context.Context) ([]domain.Permission, error) {
		return s.Store.Roles().ListUserPermissions(ctx, userID)
	})
	if err != nil {
		return nil, unavailable("list permissions", err)
	}
	return domain.PermissionNames(perms), nil
}

func (s *RolesService) userAndRole(ctx context.Context, email, roleName string) (domain.User, domain.Role, error) {
	user, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.User, error) {
		return s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Role{}, ErrUserNotFound
		}
		return domain.User{}, domain.Role{}, unavailable("lookup user", err)
	}

	role, err := s.role(ctx, roleName)
	if err != nil {
		return domain.User{}, domain.Role{}, err
	}
	return user, role, nil
}

func (s *RolesService) roleAndPermission(ctx context.Context, roleName, permName string) (domain.Role, domain.Permission, error) {
	role, err := s.role(ctx, roleName)
	if err != nil {
		return domain.Role{}, domain.Permission{}, err
	}

	perm, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Permission, error) {
		return s.Store.Roles().GetPermissionByName(ctx, strings.TrimSpace(permName))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Role{}, domain.Permission{}, fmt.Errorf("permission %q: %w", permName, ErrPermissionNotFound)
		}
		return domain.Role{}, domain.Permission{}, unavailable("lookup permission", err)
	}
	return role, perm, nil
}

func (s *RolesService) role(ctx context.Context, name string) (domain.Role, error) {
	role, err := call(ctx, s.StoreTimeout, func(ctx context.Context) (domain.Role, error) {
		return s.Store.Roles().GetRoleByName(ctx, strings.TrimSpace(name))
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Role{}, fmt.Errorf("role %q: %w", name, ErrRoleNotFound)
		}
		return domain.Role{}, unavailable("lookup role", err)
	}
	return role, nil
}
