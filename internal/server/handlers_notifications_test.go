package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fy-st0rm/lobic/internal/conns"
	"github.com/fy-st0rm/lobic/internal/domain"
	"github.com/fy-st0rm/lobic/internal/notify"
)

type memoryStore struct {
	notifications []domain.Notification
}

func (m *memoryStore) Insert(_ context.Context, n domain.Notification) error {
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memoryStore) ListFor(_ context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	for i, n := range m.notifications {
		if n.ID == id {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func newNotificationServer(store *memoryStore) *Server {
	notifier := notify.NewService(conns.NewRegistry(), store, clockwork.NewRealClock())
	s := &Server{echo: echo.New(), notifier: notifier}
	s.echo.GET("/api/notifications/:userID", s.handleListNotifications)
	s.echo.DELETE("/api/notifications/:id", s.handleDeleteNotification)
	return s
}

func TestListNotifications(t *testing.T) {
	store := &memoryStore{notifications: []domain.Notification{
		{ID: "n1", UserID: "alice", OpCode: "REQUEST_MUSIC_PLAY", Value: json.RawMessage(`{"id":"song-1"}`)},
		{ID: "n2", UserID: "bob", OpCode: "REQUEST_MUSIC_PLAY", Value: json.RawMessage(`{}`)},
	}}
	s := newNotificationServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/alice", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
}

func TestListNotificationsEmptyIsArray(t *testing.T) {
	s := newNotificationServer(&memoryStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/nobody", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteNotification(t *testing.T) {
	store := &memoryStore{notifications: []domain.Notification{{ID: "n1", UserID: "alice"}}}
	s := newNotificationServer(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/notifications/n1", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.notifications)
}

func TestDeleteMissingNotification(t *testing.T) {
	s := newNotificationServer(&memoryStore{})

	req := httptest.NewRequest(http.MethodDelete, "/api/notifications/nope", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Code)
}
