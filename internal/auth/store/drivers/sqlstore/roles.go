package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/doorman/internal/auth/domain"
)

type rolesRepo struct {
	q *queries
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	row := r.q.queryRow(ctx, `SELECT id, name, description, created_at FROM roles WHERE name = ?`, name)

	var role domain.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, scanTime{&role.CreatedAt}); err != nil {
		return domain.Role{}, r.q.mapErr(err)
	}
	return role, nil
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO roles (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		role.ID, role.Name, role.Description, role.CreatedAt.UTC(),
	)
	return err
}

func (r *rolesRepo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.q.query(ctx, `SELECT id, name, description, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

func (r *rolesRepo) ListUserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	rows, err := r.q.query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

func (r *rolesRepo) AssignRole(ctx context.Context, userID, roleID string, at time.Time) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID, at.UTC(),
	)
	return err
}

func (r *rolesRepo) UnassignRole(ctx context.Context, userID, roleID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	return err
}

func (r *rolesRepo) GetPermissionByName(ctx context.Context, name string) (domain.Permission, error) {
	row := r.q.queryRow(ctx,
		`SELECT id, name, resource, action, created_at FROM permissions WHERE name = ?`, name)

	var p domain.Permission
	if err := row.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, scanTime{&p.CreatedAt}); err != nil {
		return domain.Permission{}, r.q.mapErr(err)
	}
	return p, nil
}

func (r *rolesRepo) CreatePermission(ctx context.Context, p domain.Permission) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO permissions (id, name, resource, action, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Resource, p.Action, p.CreatedAt.UTC(),
	)
	return err
}

func (r *rolesRepo) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES (?, ?)
		ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, permissionID,
	)
	return err
}

func (r *rolesRepo) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.q.exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = ? AND permission_id = ?`, roleID, permissionID)
	return err
}

func (r *rolesRepo) ListUserPermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	rows, err := r.q.query(ctx, `
		SELECT DISTINCT p.id, p.name, p.resource, p.action, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = ?
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, scanTime{&p.CreatedAt}); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanRoles(rows *sql.Rows) ([]domain.Role, error) {
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, scanTime{&role.CreatedAt}); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
