package notifications

import (
	"fmt"
	"log"
	"os/exec"

	"github.com/egor/soportebot/models"
)

// Возможности хост-платформы (звук, системные уведомления, тосты)
// вынесены в интерфейсы: в тестах подменяются фейками, в продакшене
// используются exec-реализации ниже.

// SoundPlayer проигрывает звуковой файл с громкостью 0.0–1.0
type SoundPlayer interface {
	Play(source string, volume float64) error
}

// DesktopNotifier показывает системное уведомление
type DesktopNotifier interface {
	Notify(title, message, tag string) error
}

// Toaster показывает временное всплывающее сообщение
type Toaster interface {
	Toast(message, kind string)
}

// UI перерисовывает счётчик и список уведомлений
type UI interface {
	Render(unread int, items []models.Notification)
}

// ExecPlayer проигрывает звук внешней командой (по умолчанию paplay)
type ExecPlayer struct {
	Command string
}

func (p ExecPlayer) Play(source string, volume float64) error {
	command := p.Command
	if command == "" {
		command = "paplay"
	}
	var args []string
	if command == "paplay" {
		// paplay принимает громкость в диапазоне 0–65536
		args = append(args, fmt.Sprintf("--volume=%d", int(volume*65536)))
	}
	args = append(args, source)
	return exec.Command(command, args...).Run()
}

// ExecNotifier показывает системное уведомление через notify-send
type ExecNotifier struct{}

func (ExecNotifier) Notify(title, message, tag string) error {
	return exec.Command("notify-send", "--hint=string:x-canonical-private-synchronous:"+tag, title, message).Run()
}

// LogToaster пишет тосты в журнал процесса
type LogToaster struct{}

func (LogToaster) Toast(message, kind string) {
	log.Printf("[toast:%s] %s", kind, message)
}

// LogUI пишет сводку журнала в лог вместо отрисовки
type LogUI struct{}

func (LogUI) Render(unread int, items []models.Notification) {
	log.Printf("[notifications] всего: %d, непрочитанных: %d", len(items), unread)
}
