package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry) error
		QueryEntriesByOrg(ctx context.Context, orgID string) ([]Entry, error)
		// DeleteEntriesBefore deletes at most `limit` entries of the given org
		// older than `cutoff` and returns how many rows were actually removed.
		DeleteEntriesBefore(ctx context.Context, orgID string, cutoff time.Time, limit int) (int, error)
	}

	// Recorder is the write side of the ledger, consumed by the other services.
	Recorder interface {
		Record(ctx context.Context, action, details, orgID string, actor Actor)
	}

	Service struct {
		repo   Repository
		clock  PruneClock
		conf   *core.Config
		logger core.Logger
	}
)

var _ Recorder = (*Service)(nil)

func NewService(repo Repository, clock PruneClock, conf *core.Config, logger core.Logger) *Service {
	return &Service{repo: repo, clock: clock, conf: conf, logger: logger}
}

// Record appends one entry, best-effort: a failed write is logged and never
// blocks or rolls back the action it describes.
func (svc *Service) Record(ctx context.Context, action, details, orgID string, actor Actor) {
	entry := Entry{
		ID:             uuid.New().String(),
		Action:         action,
		Details:        details,
		ActorEmail:     actor.Email,
		ActorRole:      actor.Role,
		OrganizationID: orgID,
		CreatedAt:      nowFunc().UTC(),
	}
	if err := svc.repo.CreateEntry(ctx, entry); err != nil {
		svc.logger.Error(fmt.Sprintf("audit: recording %s for org %s", action, orgID), err)
	}
}

// QueryByOrg returns the org's ledger, opportunistically pruning expired
// entries first. Pruning failures do not fail the read.
func (svc *Service) QueryByOrg(ctx context.Context, orgID string) ([]Entry, error) {
	if _, err := svc.PruneDue(ctx, orgID); err != nil {
		svc.logger.Error("audit: pruning org "+orgID, err)
	}
	return svc.repo.QueryEntriesByOrg(ctx, orgID)
}

// PruneDue deletes entries older than the retention window, in batches, at
// most once per prune interval per organization. Returns the number of
// entries actually deleted; partial batch failures surface the count so far.
func (svc *Service) PruneDue(ctx context.Context, orgID string) (int, error) {
	due, err := svc.clock.TryAcquire(ctx, orgID, svc.conf.AuditPruneInterval)
	if err != nil {
		return 0, err
	}
	if !due {
		return 0, nil
	}

	cutoff := nowFunc().UTC().Add(-svc.conf.AuditRetention)
	batch := svc.conf.AuditPruneBatchSize

	var total int
	for {
		n, err := svc.repo.DeleteEntriesBefore(ctx, orgID, cutoff, batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < batch {
			return total, nil
		}
	}
}
