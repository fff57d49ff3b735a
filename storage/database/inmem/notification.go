package inmemdb

import (
	"context"
	"sort"

	"github.com/easyspeak/console/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notifications}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryGlobalNotifications(ctx context.Context) ([]notification.Notification, error) {
	return repo.query(notification.TargetAll), nil
}

func (repo *notificationRepository) QueryOrgNotifications(ctx context.Context, orgID string) ([]notification.Notification, error) {
	return repo.query(orgID), nil
}

func (repo *notificationRepository) query(target string) []notification.Notification {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notifications := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.TargetOrganizationID == target {
			notifications = append(notifications, *n)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications
}
