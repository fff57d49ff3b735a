package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/easyspeak/console/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID                   string    `db:"id"`
	Title                string    `db:"title"`
	Message              string    `db:"message"`
	TargetOrganizationID string    `db:"target_organization_id"`
	TargetRole           string    `db:"target_role"`
	CreatedBy            string    `db:"created_by"`
	CreatedAt            time.Time `db:"created_at"`
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	const q = `
		INSERT INTO notifications (id, title, message, target_organization_id, target_role, created_by, created_at)
		VALUES (:id, :title, :message, :target_organization_id, :target_role, :created_by, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, notificationRow(n)); err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (repo *notificationRepository) QueryGlobalNotifications(ctx context.Context) ([]notification.Notification, error) {
	return repo.query(ctx, notification.TargetAll)
}

func (repo *notificationRepository) QueryOrgNotifications(ctx context.Context, orgID string) ([]notification.Notification, error) {
	return repo.query(ctx, orgID)
}

func (repo *notificationRepository) query(ctx context.Context, target string) ([]notification.Notification, error) {
	var rows []notificationRow
	const q = `
		SELECT * FROM notifications
		WHERE target_organization_id = $1
		ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, target); err != nil {
		return nil, err
	}
	notifications := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, notification.Notification(row))
	}
	return notifications, nil
}
