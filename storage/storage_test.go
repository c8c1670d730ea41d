package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egor/soportebot/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func notif(ticketID string) models.Notification {
	return models.Notification{
		Type:      models.NotificationNewTicket,
		Title:     "🎫 Nuevo Ticket Asignado",
		Message:   "Se te ha asignado el ticket: " + ticketID,
		TicketID:  ticketID,
		Timestamp: time.Now(),
	}
}

func TestInsertNotificationIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	inserted, err := store.InsertNotification(notif("TK-1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// повтор той же пары (ticketId, type) - не ошибка и не дубликат
	inserted, err = store.InsertNotification(notif("TK-1"))
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := store.ListNotifications()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListNotificationsNewestFirst(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"TK-1", "TK-2", "TK-3"} {
		_, err := store.InsertNotification(notif(id))
		require.NoError(t, err)
	}

	list, err := store.ListNotifications()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "TK-3", list[0].TicketID)
	assert.Equal(t, "TK-2", list[1].TicketID)
	assert.Equal(t, "TK-1", list[2].TicketID)
}

func TestTicketDataSurvivesRoundTrip(t *testing.T) {
	store := openTestStore(t)

	n := notif("TK-9")
	n.TicketData = &models.AdminTicket{
		ID:         "TK-9",
		Subject:    "Impresora sin tóner",
		Username:   "maria",
		AssignedTo: "ana",
		Status:     models.TicketStatusPending,
	}
	_, err := store.InsertNotification(n)
	require.NoError(t, err)

	list, err := store.ListNotifications()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].TicketData)
	assert.Equal(t, "Impresora sin tóner", list[0].TicketData.Subject)
	assert.Equal(t, "ana", list[0].TicketData.AssignedTo)
}

func TestUnreadCountAndMarkAllRead(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"TK-1", "TK-2"} {
		_, err := store.InsertNotification(notif(id))
		require.NoError(t, err)
	}

	count, err := store.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkAllRead())

	count, err = store.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	list, err := store.ListNotifications()
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.Read)
	}
}

func TestRemoveAndClear(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"TK-1", "TK-2", "TK-3"} {
		_, err := store.InsertNotification(notif(id))
		require.NoError(t, err)
	}

	require.NoError(t, store.RemoveNotification("TK-2"))
	list, err := store.ListNotifications()
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		assert.NotEqual(t, "TK-2", n.TicketID)
	}

	require.NoError(t, store.ClearNotifications())
	list, err = store.ListNotifications()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadSettingsDefaultsWhenEmpty(t *testing.T) {
	store := openTestStore(t)

	settings, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNotificationSettings(), settings)
}

func TestSettingsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	settings := models.DefaultNotificationSettings()
	settings.Sound = "chime"
	settings.Volume = 35
	settings.DesktopNotifications = false
	require.NoError(t, store.SaveSettings(settings))

	loaded, err := store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)

	// повторное сохранение перезаписывает, а не дублирует
	settings.Volume = 90
	require.NoError(t, store.SaveSettings(settings))
	loaded, err = store.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 90, loaded.Volume)
}
