package notifications

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egor/soportebot/backend"
	"github.com/egor/soportebot/models"
	"github.com/egor/soportebot/storage"
)

type playCall struct {
	source string
	volume float64
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []playCall
	err   error
}

func (p *fakePlayer) Play(source string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{source, volume})
	return p.err
}

type fakeDesktop struct {
	mu     sync.Mutex
	titles []string
}

func (d *fakeDesktop) Notify(title, message, tag string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles = append(d.titles, title)
	return nil
}

type fakeToaster struct {
	mu   sync.Mutex
	msgs []string
}

func (t *fakeToaster) Toast(message, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, message)
}

type renderCall struct {
	unread int
	total  int
}

type fakeUI struct {
	mu      sync.Mutex
	renders []renderCall
}

func (u *fakeUI) Render(unread int, items []models.Notification) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.renders = append(u.renders, renderCall{unread, len(items)})
}

type centerFixture struct {
	center  *Center
	player  *fakePlayer
	desktop *fakeDesktop
	toaster *fakeToaster
	ui      *fakeUI
}

func newTestCenter(t *testing.T, api SoundAPI) *centerFixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &centerFixture{
		player:  &fakePlayer{},
		desktop: &fakeDesktop{},
		toaster: &fakeToaster{},
		ui:      &fakeUI{},
	}
	f.center, err = New(Config{
		Admin:    "ana",
		Store:    store,
		API:      api,
		Player:   f.player,
		Desktop:  f.desktop,
		Toaster:  f.toaster,
		UI:       f.ui,
		SoundDir: "/opt/soportebot/sounds",
	})
	require.NoError(t, err)
	return f
}

func testNotification(ticketID string) models.Notification {
	return models.Notification{
		Type:      models.NotificationNewTicket,
		Title:     "🎫 Nuevo Ticket Asignado",
		Message:   "Se te ha asignado el ticket: " + ticketID,
		TicketID:  ticketID,
		Timestamp: time.Now(),
	}
}

func TestAddPlaysSoundAndNotifies(t *testing.T) {
	f := newTestCenter(t, nil)

	added := f.center.Add(testNotification("TK-1"))
	assert.True(t, added)

	require.Len(t, f.player.calls, 1)
	assert.Equal(t, filepath.Join("/opt/soportebot/sounds", "default.mp3"), f.player.calls[0].source)
	// громкость по умолчанию 70 → 0.7
	assert.InDelta(t, 0.7, f.player.calls[0].volume, 0.001)

	require.Len(t, f.desktop.titles, 1)
	require.Len(t, f.toaster.msgs, 1)
	assert.Contains(t, f.toaster.msgs[0], "TK-1")
}

func TestDuplicateNotificationIsSilent(t *testing.T) {
	f := newTestCenter(t, nil)

	assert.True(t, f.center.Add(testNotification("TK-1")))
	assert.False(t, f.center.Add(testNotification("TK-1")))

	// повтор не шумит: один звук, один тост, одно системное уведомление
	assert.Len(t, f.player.calls, 1)
	assert.Len(t, f.toaster.msgs, 1)
	assert.Len(t, f.desktop.titles, 1)
}

func TestDesktopNotificationsCanBeDisabled(t *testing.T) {
	f := newTestCenter(t, nil)

	settings := f.center.Settings()
	settings.DesktopNotifications = false
	require.NoError(t, f.center.UpdateSettings(settings))

	f.center.Add(testNotification("TK-1"))
	assert.Empty(t, f.desktop.titles)
	assert.Len(t, f.player.calls, 1)
}

func TestPublishAndRunConsume(t *testing.T) {
	f := newTestCenter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.center.Run(ctx)

	f.center.Publish(testNotification("TK-1"))
	f.center.Publish(testNotification("TK-1")) // дубликат
	f.center.Publish(testNotification("TK-2"))

	require.Eventually(t, func() bool {
		items, err := f.center.store.ListNotifications()
		return err == nil && len(items) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestOpenPopupAutoMarksRead(t *testing.T) {
	f := newTestCenter(t, nil)
	f.center.Add(testNotification("TK-1"))
	f.center.Add(testNotification("TK-2"))

	items, err := f.center.OpenPopup()
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, n := range items {
		assert.True(t, n.Read)
	}

	// с выключенным autoMarkAsRead журнал не трогается
	settings := f.center.Settings()
	settings.AutoMarkAsRead = false
	require.NoError(t, f.center.UpdateSettings(settings))

	f.center.Add(testNotification("TK-3"))
	items, err = f.center.OpenPopup()
	require.NoError(t, err)
	assert.False(t, items[0].Read)
}

func TestUpdateSettingsValidation(t *testing.T) {
	f := newTestCenter(t, nil)

	settings := f.center.Settings()
	settings.Sound = "inexistente"
	assert.Error(t, f.center.UpdateSettings(settings))

	settings.Sound = "chime"
	settings.Volume = 250
	require.NoError(t, f.center.UpdateSettings(settings))
	assert.Equal(t, 100, f.center.Settings().Volume)

	settings.Volume = -5
	require.NoError(t, f.center.UpdateSettings(settings))
	assert.Equal(t, 0, f.center.Settings().Volume)
}

func TestPlaySoundUsesConfiguredSound(t *testing.T) {
	f := newTestCenter(t, nil)

	settings := f.center.Settings()
	settings.Sound = "alert"
	settings.Volume = 40
	require.NoError(t, f.center.UpdateSettings(settings))

	f.center.PlaySound(true)
	require.Len(t, f.player.calls, 1)
	assert.Equal(t, filepath.Join("/opt/soportebot/sounds", "alert.mp3"), f.player.calls[0].source)
	assert.InDelta(t, 0.4, f.player.calls[0].volume, 0.001)
}

func TestPlaySoundErrorToastsOnlyOutsideTest(t *testing.T) {
	f := newTestCenter(t, nil)
	f.player.err = errors.New("sin dispositivo de audio")

	f.center.PlaySound(true)
	assert.Empty(t, f.toaster.msgs)

	f.center.PlaySound(false)
	require.Len(t, f.toaster.msgs, 1)
	assert.Contains(t, f.toaster.msgs[0], "Error reproduciendo sonido")
}

// ─────────────────────────────── поллер

type fakeLister struct {
	tickets []models.AdminTicket
	err     error
}

func (l *fakeLister) GetAdminTickets(ctx context.Context) ([]models.AdminTicket, error) {
	return l.tickets, l.err
}

func TestPollerPublishesOnlyPendingOwnTickets(t *testing.T) {
	f := newTestCenter(t, nil)
	lister := &fakeLister{tickets: []models.AdminTicket{
		{ID: "TK-1", AssignedTo: "ana", Status: "PE"},
		{ID: "TK-2", AssignedTo: "luis", Status: "PE"},  // чужой
		{ID: "TK-3", AssignedTo: "ana", Status: "FN"},   // завершён
		{ID: "TK-4", AssignedTo: "ana", Status: " PE "}, // статус с пробелами
	}}

	p := NewPoller(lister, f.center, "ana", time.Minute)
	p.check(context.Background())

	var got []string
	for {
		select {
		case n := <-f.center.in:
			got = append(got, n.TicketID)
			require.NotNil(t, n.TicketData)
			continue
		default:
		}
		break
	}
	assert.Equal(t, []string{"TK-1", "TK-4"}, got)
}

func TestPollerSurvivesBackendErrors(t *testing.T) {
	f := newTestCenter(t, nil)
	lister := &fakeLister{err: errors.New("connection refused")}

	p := NewPoller(lister, f.center, "ana", time.Minute)
	// не должен паниковать и ничего не публикует
	p.check(context.Background())
	assert.Empty(t, f.center.in)
}

// ─────────────────────────────── пользовательский звук

type fakeSoundAPI struct {
	uploaded  []string
	uploadRes *backend.SoundUploadResult
	info      *backend.SoundInfo
	infoErr   error
	deleted   bool
}

func (a *fakeSoundAPI) UploadNotificationSound(ctx context.Context, username, filename string, file io.Reader) (*backend.SoundUploadResult, error) {
	a.uploaded = append(a.uploaded, filename)
	return a.uploadRes, nil
}

func (a *fakeSoundAPI) GetNotificationSound(ctx context.Context, username string) (*backend.SoundInfo, error) {
	return a.info, a.infoErr
}

func (a *fakeSoundAPI) DeleteNotificationSound(ctx context.Context, username string) error {
	a.deleted = true
	return nil
}

// mp3Bytes начинается с тега ID3, чтобы содержимое распознавалось как аудио
func mp3Bytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "ID3")
	return data
}

func TestUploadCustomSound(t *testing.T) {
	api := &fakeSoundAPI{uploadRes: &backend.SoundUploadResult{Success: true, FilePath: "/uploads/ana.mp3"}}
	f := newTestCenter(t, api)

	path := filepath.Join(t.TempDir(), "tono.mp3")
	require.NoError(t, os.WriteFile(path, mp3Bytes(1024), 0o644))

	require.NoError(t, f.center.UploadCustomSound(context.Background(), path))

	assert.Equal(t, []string{"tono.mp3"}, api.uploaded)
	settings := f.center.Settings()
	assert.Equal(t, "custom", settings.Sound)
	assert.Equal(t, "/uploads/ana.mp3", settings.CustomSoundPath)

	// теперь уведомления играют пользовательский звук
	f.center.PlaySound(true)
	require.NotEmpty(t, f.player.calls)
	assert.Equal(t, "/uploads/ana.mp3", f.player.calls[len(f.player.calls)-1].source)
}

func TestUploadCustomSoundRejectsOversize(t *testing.T) {
	f := newTestCenter(t, &fakeSoundAPI{})

	path := filepath.Join(t.TempDir(), "tono.mp3")
	require.NoError(t, os.WriteFile(path, mp3Bytes(MaxSoundSize+1), 0o644))

	err := f.center.UploadCustomSound(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demasiado grande")
}

func TestUploadCustomSoundRejectsNonAudio(t *testing.T) {
	f := newTestCenter(t, &fakeSoundAPI{})

	path := filepath.Join(t.TempDir(), "notas.txt")
	require.NoError(t, os.WriteFile(path, []byte("esto no es audio"), 0o644))

	err := f.center.UploadCustomSound(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio")
}

func TestDeleteCustomSoundRestoresDefault(t *testing.T) {
	api := &fakeSoundAPI{uploadRes: &backend.SoundUploadResult{Success: true, FilePath: "/uploads/ana.mp3"}}
	f := newTestCenter(t, api)

	path := filepath.Join(t.TempDir(), "tono.mp3")
	require.NoError(t, os.WriteFile(path, mp3Bytes(64), 0o644))
	require.NoError(t, f.center.UploadCustomSound(context.Background(), path))

	require.NoError(t, f.center.DeleteCustomSound(context.Background()))
	assert.True(t, api.deleted)
	settings := f.center.Settings()
	assert.Equal(t, "default", settings.Sound)
	assert.Empty(t, settings.CustomSoundPath)
}

func TestCheckExistingCustomSound(t *testing.T) {
	api := &fakeSoundAPI{info: &backend.SoundInfo{Success: true, HasCustomSound: true, SoundPath: "/uploads/ana.mp3"}}
	f := newTestCenter(t, api)

	f.center.CheckExistingCustomSound(context.Background())

	settings := f.center.Settings()
	assert.Equal(t, "custom", settings.Sound)
	assert.Equal(t, "/uploads/ana.mp3", settings.CustomSoundPath)
}

func TestCheckExistingCustomSoundIgnoresErrors(t *testing.T) {
	api := &fakeSoundAPI{infoErr: errors.New("backend caído")}
	f := newTestCenter(t, api)

	f.center.CheckExistingCustomSound(context.Background())
	assert.Equal(t, "default", f.center.Settings().Sound)
}
