package domain

import "context"

// UserDirectory answers identity and social-graph questions. Backed by the
// user-account and friendship stores, which are owned by other services.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	FriendsOf(ctx context.Context, userID string) ([]string, error)
}

// NotificationStore durably persists notifications for offline delivery.
type NotificationStore interface {
	Insert(ctx context.Context, n Notification) error
	ListFor(ctx context.Context, userID string) ([]Notification, error)
	Delete(ctx context.Context, notificationID string) error
}
