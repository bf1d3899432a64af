package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionRecords is the repository for the durable session history. Rows
// are append-then-stamp: created at login/refresh, mutated only to set
// the logout time, never deleted.
type SessionRecords interface {
	repository.Repository[*SessionRecord]

	Create(ctx context.Context, record *SessionRecord, criteria ...repository.InsertCriteria) (*SessionRecord, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *SessionRecord, criteria ...repository.InsertCriteria) (*SessionRecord, error)

	ListActive(ctx context.Context, principalID uuid.UUID) ([]*SessionRecord, error)
	ListActiveTx(ctx context.Context, tx bun.IDB, principalID uuid.UUID) ([]*SessionRecord, error)

	MarkLoggedOut(ctx context.Context, sessionID uuid.UUID) error
	MarkLoggedOutTx(ctx context.Context, tx bun.IDB, sessionID uuid.UUID) error
}

type sessionRecords struct {
	repository.Repository[*SessionRecord]
	db *bun.DB
}

var _ SessionRecords = (*sessionRecords)(nil)

func NewSessionRecordsRepository(db *bun.DB) SessionRecords {
	repo := repository.NewRepository[*SessionRecord](db, repository.ModelHandlers[*SessionRecord]{
		NewRecord: func() *SessionRecord { return &SessionRecord{} },
		GetID: func(s *SessionRecord) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *SessionRecord, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &sessionRecords{
		Repository: repo,
		db:         db,
	}
}

func (a *sessionRecords) Create(ctx context.Context, record *SessionRecord, criteria ...repository.InsertCriteria) (*SessionRecord, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *sessionRecords) CreateTx(ctx context.Context, tx bun.IDB, record *SessionRecord, criteria ...repository.InsertCriteria) (*SessionRecord, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// ListActive returns the principal's open sessions, oldest first. Bulk
// revocation enumerates this durable view rather than scanning the
// registry.
func (a *sessionRecords) ListActive(ctx context.Context, principalID uuid.UUID) ([]*SessionRecord, error) {
	return a.ListActiveTx(ctx, a.db, principalID)
}

func (a *sessionRecords) ListActiveTx(ctx context.Context, tx bun.IDB, principalID uuid.UUID) ([]*SessionRecord, error) {
	var records []*SessionRecord
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.principal_id = ?", principalID).
		Where("?TableAlias.logged_out_at IS NULL").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkLoggedOut stamps the record's logout time. Already-closed records
// keep their original stamp, which keeps the call idempotent.
func (a *sessionRecords) MarkLoggedOut(ctx context.Context, sessionID uuid.UUID) error {
	return a.MarkLoggedOutTx(ctx, a.db, sessionID)
}

func (a *sessionRecords) MarkLoggedOutTx(ctx context.Context, tx bun.IDB, sessionID uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("logged_out_at = ?", time.Now()).
		Where("?TableAlias.id = ?", sessionID).
		Where("?TableAlias.logged_out_at IS NULL").
		Exec(ctx)

	return err
}
