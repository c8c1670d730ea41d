// Package notifications реализует центр уведомлений админа: поллинг списка
// тикетов и push-события с бэкенда стекаются в один канал, потребитель
// которого единолично владеет локальным журналом. Вставка в журнал
// идемпотентна по паре (ticketId, type).
package notifications

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/egor/soportebot/models"
	"github.com/egor/soportebot/storage"
)

// defaultQueueSize - буфер канала уведомлений
const defaultQueueSize = 64

// builtinSounds - встроенные звуки уведомлений
var builtinSounds = map[string]bool{
	"default": true,
	"chime":   true,
	"alert":   true,
	"message": true,
}

// Config - зависимости центра уведомлений. Нулевые возможности заменяются
// exec/log-реализациями из capabilities.go.
type Config struct {
	Admin    string
	Store    *storage.Store
	API      SoundAPI
	Player   SoundPlayer
	Desktop  DesktopNotifier
	Toaster  Toaster
	UI       UI
	SoundDir string // каталог встроенных звуков
}

// Center - единственный владелец журнала уведомлений. Оба источника
// (поллер и push-слушатель) публикуют в общий канал; потребляет его
// ровно одна горутина Run.
type Center struct {
	admin    string
	store    *storage.Store
	api      SoundAPI
	player   SoundPlayer
	desktop  DesktopNotifier
	toaster  Toaster
	ui       UI
	soundDir string

	in chan models.Notification

	mu       sync.Mutex
	settings models.NotificationSettings
}

// New создаёт центр и загружает настройки из локального хранилища
func New(cfg Config) (*Center, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("notifications: хранилище обязательно")
	}

	settings, err := cfg.Store.LoadSettings()
	if err != nil {
		log.Printf("[notifications] не удалось загрузить настройки, используются значения по умолчанию: %v", err)
		settings = models.DefaultNotificationSettings()
	}

	c := &Center{
		admin:    cfg.Admin,
		store:    cfg.Store,
		api:      cfg.API,
		player:   cfg.Player,
		desktop:  cfg.Desktop,
		toaster:  cfg.Toaster,
		ui:       cfg.UI,
		soundDir: cfg.SoundDir,
		in:       make(chan models.Notification, defaultQueueSize),
		settings: settings,
	}
	if c.player == nil {
		c.player = ExecPlayer{}
	}
	if c.desktop == nil {
		c.desktop = ExecNotifier{}
	}
	if c.toaster == nil {
		c.toaster = LogToaster{}
	}
	if c.ui == nil {
		c.ui = LogUI{}
	}
	return c, nil
}

// Publish ставит уведомление в очередь на вставку. Безопасно для
// конкурентных источников: порядок между ними определяет канал.
func (c *Center) Publish(n models.Notification) {
	c.in <- n
}

// Run потребляет канал до отмены контекста
func (c *Center) Run(ctx context.Context) {
	c.Rerender()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.in:
			c.Add(n)
		}
	}
}

// Add вставляет уведомление в журнал. Повтор пары (ticketId, type) -
// no-op: ни тоста, ни звука, ни изменения журнала. Возвращает true,
// если запись новая.
func (c *Center) Add(n models.Notification) bool {
	inserted, err := c.store.InsertNotification(n)
	if err != nil {
		log.Printf("[notifications] ошибка вставки уведомления: %v", err)
		return false
	}
	if !inserted {
		return false
	}

	c.Rerender()
	c.toaster.Toast(fmt.Sprintf("%s — %s", n.Title, n.Message), "info")
	c.PlaySound(false)

	if c.Settings().DesktopNotifications {
		if err := c.desktop.Notify(n.Title, n.Message, n.TicketID); err != nil {
			// отказ в разрешении не фатален, попробуем при следующем уведомлении
			log.Printf("[notifications] системное уведомление не показано: %v", err)
		}
	}
	return true
}

// Rerender перечитывает журнал и обновляет интерфейс
func (c *Center) Rerender() {
	items, err := c.store.ListNotifications()
	if err != nil {
		log.Printf("[notifications] ошибка чтения журнала: %v", err)
		return
	}
	unread, err := c.store.UnreadCount()
	if err != nil {
		log.Printf("[notifications] ошибка подсчёта непрочитанных: %v", err)
		return
	}
	c.ui.Render(unread, items)
}

// OpenPopup возвращает журнал для показа; если включён autoMarkAsRead,
// все уведомления помечаются прочитанными.
func (c *Center) OpenPopup() ([]models.Notification, error) {
	if c.Settings().AutoMarkAsRead {
		if err := c.MarkAllRead(); err != nil {
			return nil, err
		}
	}
	return c.store.ListNotifications()
}

// MarkAllRead помечает все уведомления прочитанными
func (c *Center) MarkAllRead() error {
	if err := c.store.MarkAllRead(); err != nil {
		return err
	}
	c.Rerender()
	return nil
}

// Remove убирает уведомления тикета из журнала
func (c *Center) Remove(ticketID string) error {
	if err := c.store.RemoveNotification(ticketID); err != nil {
		return err
	}
	c.Rerender()
	return nil
}

// ClearAll очищает журнал
func (c *Center) ClearAll() error {
	if err := c.store.ClearNotifications(); err != nil {
		return err
	}
	c.Rerender()
	return nil
}

// Settings возвращает копию текущих настроек
func (c *Center) Settings() models.NotificationSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings валидирует, сохраняет и применяет новые настройки
func (c *Center) UpdateSettings(settings models.NotificationSettings) error {
	if settings.Volume < 0 {
		settings.Volume = 0
	}
	if settings.Volume > 100 {
		settings.Volume = 100
	}
	if settings.Sound != "custom" && !builtinSounds[settings.Sound] {
		return fmt.Errorf("неизвестный звук: %q", settings.Sound)
	}
	if err := c.store.SaveSettings(settings); err != nil {
		return err
	}
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	return nil
}

// PlaySound проигрывает настроенный звук. isTest помечает явную проверку
// из настроек: её ошибки не показываются пользователю.
func (c *Center) PlaySound(isTest bool) {
	settings := c.Settings()

	var source string
	if settings.Sound == "custom" && settings.CustomSoundPath != "" {
		source = settings.CustomSoundPath
	} else {
		key := settings.Sound
		if key == "custom" || !builtinSounds[key] {
			key = "default"
		}
		source = filepath.Join(c.soundDir, key+".mp3")
	}

	volume := float64(settings.Volume) / 100
	if err := c.player.Play(source, volume); err != nil {
		log.Printf("[notifications] ошибка воспроизведения звука: %v", err)
		if !isTest {
			c.toaster.Toast("Error reproduciendo sonido. Revisa la configuración de audio.", "error")
		}
	}
}
