package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/egor/soportebot/backend"
	"github.com/egor/soportebot/notifications"
	"github.com/egor/soportebot/storage"
)

func main() {
	// Переменные окружения из .env (если есть)
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	admin := os.Getenv("ADMIN_USERNAME")
	if admin == "" {
		log.Fatal("ADMIN_USERNAME не задан")
	}

	// Клиент внешнего бэкенда заявок
	api := backend.New()
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		api.SetToken(token)
	}

	// Локальный журнал уведомлений
	dataDir := os.Getenv("NOTIFIER_DATA_DIR")
	if dataDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			log.Fatalf("Не удалось определить каталог данных: %v", err)
		}
		dataDir = filepath.Join(configDir, "soportebot")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("Не удалось создать каталог данных %s: %v", dataDir, err)
	}

	store, err := storage.Open(filepath.Join(dataDir, "notifications.db"))
	if err != nil {
		log.Fatalf("Ошибка открытия журнала уведомлений: %v", err)
	}
	defer store.Close()

	soundDir := os.Getenv("SOUND_DIR")
	if soundDir == "" {
		soundDir = "sounds"
	}

	center, err := notifications.New(notifications.Config{
		Admin:    admin,
		Store:    store,
		API:      api,
		SoundDir: soundDir,
	})
	if err != nil {
		log.Fatalf("Ошибка инициализации центра уведомлений: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Если на бэкенде уже лежит пользовательский звук, переключаемся на него
	center.CheckExistingCustomSound(ctx)

	go center.Run(ctx)

	// Поллинг - страховка на случай пропущенных push-уведомлений
	poller := notifications.NewPoller(api, center, admin, pollInterval())
	go poller.Run(ctx)

	// Push по WebSocket; при разрыве соединения остаёмся на поллинге
	wsURL := os.Getenv("BACKEND_WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:5000/ws"
	}
	push := notifications.NewPushListener(wsURL, admin, center)
	go func() {
		if err := push.Run(ctx); err != nil {
			log.Printf("Push-слушатель остановлен: %v", err)
		}
	}()

	// Локальный интерфейс управления: журнал, настройки, триаж тикетов.
	// Наружу его выставлять нельзя, слушаем только loopback.
	controlAddr := os.Getenv("CONTROL_ADDR")
	if controlAddr == "" {
		controlAddr = "127.0.0.1:8090"
	}
	control := notifications.NewControl(center, api)
	go func() {
		if err := control.Run(controlAddr); err != nil {
			log.Printf("Интерфейс управления остановлен: %v", err)
		}
	}()

	log.Printf("Центр уведомлений запущен для администратора %s", admin)
	<-ctx.Done()

	poller.Stop()
	log.Println("Завершение работы")
}

// pollInterval читает период поллинга из окружения
func pollInterval() time.Duration {
	raw := os.Getenv("POLL_INTERVAL")
	if raw == "" {
		return notifications.DefaultPollInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("POLL_INTERVAL некорректен (%q), используется значение по умолчанию", raw)
		return notifications.DefaultPollInterval
	}
	return d
}
