package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egor/soportebot/backend"
	"github.com/egor/soportebot/models"
)

type triageCall struct {
	op       string
	ticketID string
	arg      string
}

type fakeTicketAPI struct {
	mu    sync.Mutex
	calls []triageCall
	err   error
}

func (a *fakeTicketAPI) record(op, ticketID, arg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, triageCall{op, ticketID, arg})
	return nil
}

func (a *fakeTicketAPI) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	return a.record("status", ticketID, status)
}

func (a *fakeTicketAPI) AssignTicket(ctx context.Context, ticketID, adminUsername string) error {
	return a.record("assign", ticketID, adminUsername)
}

func (a *fakeTicketAPI) ReassignTicketUser(ctx context.Context, ticketID, username string) error {
	return a.record("reassign", ticketID, username)
}

func (a *fakeTicketAPI) RateTicket(ctx context.Context, ticketID string, rating int, comment string) error {
	return a.record("rate", ticketID, comment)
}

type controlFixture struct {
	*centerFixture
	router  *gin.Engine
	tickets *fakeTicketAPI
}

func newControlFixture(t *testing.T, api SoundAPI) *controlFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &controlFixture{
		centerFixture: newTestCenter(t, api),
		tickets:       &fakeTicketAPI{},
	}
	f.router = NewControl(f.center, f.tickets)
	return f
}

func (f *controlFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestControlListNotificationsMarksRead(t *testing.T) {
	f := newControlFixture(t, nil)
	f.center.Add(testNotification("TK-1"))
	f.center.Add(testNotification("TK-2"))

	w := f.do(t, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 2)
	// autoMarkAsRead включён по умолчанию
	for _, n := range resp.Notifications {
		assert.True(t, n.Read)
	}

	unread, err := f.center.store.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestControlRemoveAndClear(t *testing.T) {
	f := newControlFixture(t, nil)
	f.center.Add(testNotification("TK-1"))
	f.center.Add(testNotification("TK-2"))

	w := f.do(t, http.MethodDelete, "/api/notifications/TK-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, err := f.center.store.ListNotifications()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "TK-2", items[0].TicketID)

	w = f.do(t, http.MethodDelete, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, err = f.center.store.ListNotifications()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestControlUpdateSettings(t *testing.T) {
	f := newControlFixture(t, nil)

	settings := f.center.Settings()
	settings.Sound = "chime"
	settings.Volume = 55
	w := f.do(t, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chime", f.center.Settings().Sound)
	assert.Equal(t, 55, f.center.Settings().Volume)

	settings.Sound = "inexistente"
	w = f.do(t, http.MethodPut, "/api/settings", settings)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "chime", f.center.Settings().Sound)
}

func TestControlTestSound(t *testing.T) {
	f := newControlFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/settings/sound/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.player.calls, 1)
}

func soundUploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("sound", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/settings/sound", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestControlUploadAndDeleteSound(t *testing.T) {
	api := &fakeSoundAPI{uploadRes: &backend.SoundUploadResult{Success: true, FilePath: "/uploads/ana.mp3"}}
	f := newControlFixture(t, api)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, soundUploadRequest(t, "tono.mp3", mp3Bytes(512)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, api.uploaded, 1)
	assert.True(t, strings.HasSuffix(api.uploaded[0], ".mp3"))
	assert.Equal(t, "custom", f.center.Settings().Sound)

	w = f.do(t, http.MethodDelete, "/api/settings/sound", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, api.deleted)
	assert.Equal(t, "default", f.center.Settings().Sound)
}

func TestControlUploadSoundRejectsOversize(t *testing.T) {
	f := newControlFixture(t, &fakeSoundAPI{})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, soundUploadRequest(t, "tono.mp3", mp3Bytes(MaxSoundSize+1)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "demasiado grande")
}

func TestControlTicketTriage(t *testing.T) {
	f := newControlFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/tickets/TK-1/assign", map[string]string{"admin_username": "luis"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/tickets/TK-1/reassign", map[string]string{"username": "maria"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/tickets/TK-1/rate", map[string]interface{}{"rating": 5, "comment": "excelente"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []triageCall{
		{"assign", "TK-1", "luis"},
		{"reassign", "TK-1", "maria"},
		{"rate", "TK-1", "excelente"},
	}, f.tickets.calls)

	// без обязательных полей запрос не уходит на бэкенд
	w = f.do(t, http.MethodPost, "/api/tickets/TK-1/assign", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodPost, "/api/tickets/TK-1/rate", map[string]interface{}{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.tickets.calls, 3)
}

func TestControlClosingTicketRemovesNotification(t *testing.T) {
	f := newControlFixture(t, nil)
	f.center.Add(testNotification("TK-9"))

	w := f.do(t, http.MethodPut, "/api/tickets/TK-9/status", map[string]string{"status": models.TicketStatusFinished})
	require.Equal(t, http.StatusOK, w.Code)

	items, err := f.center.store.ListNotifications()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, []triageCall{{"status", "TK-9", "FN"}}, f.tickets.calls)
}

func TestControlTriageBackendError(t *testing.T) {
	f := newControlFixture(t, nil)
	f.tickets.err = errors.New("connection refused")

	w := f.do(t, http.MethodPost, "/api/tickets/TK-1/assign", map[string]string{"admin_username": "luis"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
