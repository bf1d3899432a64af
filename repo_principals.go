package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var updatePrincipalPasswordSQL = `UPDATE "principals" AS "prn"
SET
	"password_hash" = ?,
	"password_changed_at" = ?
WHERE
	"prn"."status" <> 'deleted'
AND (
	"prn"."id" = ?
) RETURNING *;`

// Principals is the repository for principal rows.
type Principals interface {
	repository.Repository[*Principal]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Principal, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Principal, error)

	Create(ctx context.Context, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	TrackLogin(ctx context.Context, id uuid.UUID) error
	TrackLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status EntityStatus) (*Principal, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status EntityStatus) (*Principal, error)
}

type principals struct {
	repository.Repository[*Principal]
	db *bun.DB
}

var _ Principals = (*principals)(nil)

func NewPrincipalsRepository(db *bun.DB) Principals {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &principals{
		Repository: repo,
		db:         db,
	}
}

// GetByIdentifier locates a principal by id, email, or username, in that
// order of confidence. Deleted rows are invisible here; the inherited
// primary-key GetByID carries no status scope and still reaches them.
func (a *principals) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Principal, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *principals) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Principal, error) {
	options := resolvePrincipalIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Principal{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Where("?TableAlias.status <> ?", StatusDeleted).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		record.EnsureStatus()
		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *principals) Create(ctx context.Context, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *principals) CreateTx(ctx context.Context, tx bun.IDB, record *Principal, criteria ...repository.InsertCriteria) (*Principal, error) {
	preparePrincipalDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *principals) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *principals) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, updatePrincipalPasswordSQL, passwordHash, time.Now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *principals) TrackLogin(ctx context.Context, id uuid.UUID) error {
	return a.TrackLoginTx(ctx, a.db, id)
}

func (a *principals) TrackLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		UPDATE "principals" AS "prn"
		SET
			"last_login_at" = ?
		WHERE
			("prn".id = ?)
			AND "prn"."status" <> 'deleted';
	`, time.Now(), id).Exec(ctx)

	return err
}

func (a *principals) UpdateStatus(ctx context.Context, id uuid.UUID, status EntityStatus) (*Principal, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

func (a *principals) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status EntityStatus) (*Principal, error) {
	record := &Principal{
		ID:     id,
		Status: status,
	}

	if status == StatusDeleted {
		now := time.Now()
		record.DeletedAt = &now
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func preparePrincipalDefaults(record *Principal) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolvePrincipalIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
