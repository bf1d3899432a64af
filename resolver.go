package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ClaimsResolver derives the denormalized role/permission snapshot for a
// principal. It runs only at login and refresh; the result rides inside
// the token afterwards.
type ClaimsResolver interface {
	Resolve(ctx context.Context, principalID uuid.UUID) (Claims, error)
}

type storeClaimsResolver struct {
	db bun.IDB
}

// NewClaimsResolver returns the relational-store-backed resolver.
func NewClaimsResolver(db bun.IDB) ClaimsResolver {
	return &storeClaimsResolver{db: db}
}

// Resolve walks principal -> role assignments -> roles -> permission
// assignments -> permissions, keeping only rows whose lifecycle status is
// active at every hop. The result is deduplicated and sorted so repeated
// resolutions of unchanged grants produce identical snapshots.
func (r *storeClaimsResolver) Resolve(ctx context.Context, principalID uuid.UUID) (Claims, error) {
	var roleCodes []string
	err := r.db.NewSelect().
		ColumnExpr("rol.code").
		TableExpr("roles AS rol").
		Join("JOIN principal_roles AS prl ON prl.role_id = rol.id").
		Where("prl.principal_id = ?", principalID).
		Where("prl.status = ?", StatusActive).
		Where("rol.status = ?", StatusActive).
		Scan(ctx, &roleCodes)
	if err != nil {
		return Claims{}, wrapStoreErr(err, "failed to resolve roles")
	}

	var permissionCodes []string
	err = r.db.NewSelect().
		ColumnExpr("prm.code").
		TableExpr("permissions AS prm").
		Join("JOIN role_permissions AS rpm ON rpm.permission_id = prm.id").
		Join("JOIN roles AS rol ON rol.id = rpm.role_id").
		Join("JOIN principal_roles AS prl ON prl.role_id = rol.id").
		Where("prl.principal_id = ?", principalID).
		Where("prl.status = ?", StatusActive).
		Where("rol.status = ?", StatusActive).
		Where("rpm.status = ?", StatusActive).
		Where("prm.status = ?", StatusActive).
		Scan(ctx, &permissionCodes)
	if err != nil {
		return Claims{}, wrapStoreErr(err, "failed to resolve permissions")
	}

	return Claims{
		Roles:       roleCodes,
		Permissions: permissionCodes,
	}.Normalize(), nil
}
