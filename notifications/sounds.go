package notifications

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/egor/soportebot/backend"
)

// MaxSoundSize - предел размера пользовательского звука
const MaxSoundSize = 2 << 20 // 2MB

// SoundAPI - операции бэкенда над пользовательским звуком админа.
// Реализуется *backend.Client.
type SoundAPI interface {
	UploadNotificationSound(ctx context.Context, username, filename string, file io.Reader) (*backend.SoundUploadResult, error)
	GetNotificationSound(ctx context.Context, username string) (*backend.SoundInfo, error)
	DeleteNotificationSound(ctx context.Context, username string) error
}

// CheckExistingCustomSound спрашивает бэкенд, есть ли у админа загруженный
// звук, и при наличии переключает настройки на него.
func (c *Center) CheckExistingCustomSound(ctx context.Context) {
	if c.api == nil {
		return
	}
	info, err := c.api.GetNotificationSound(ctx, c.admin)
	if err != nil {
		// не критично: остаёмся на встроенном звуке
		return
	}
	if !info.Success || !info.HasCustomSound {
		return
	}

	settings := c.Settings()
	settings.CustomSoundPath = info.SoundPath
	settings.Sound = "custom"
	if err := c.UpdateSettings(settings); err != nil {
		c.toaster.Toast("No se pudo guardar la configuración de sonido", "warning")
	}
}

// UploadCustomSound валидирует локальный аудиофайл (размер и MIME-тип)
// и загружает его на бэкенд. Успех переключает настройки на custom.
func (c *Center) UploadCustomSound(ctx context.Context, path string) error {
	if c.api == nil {
		return fmt.Errorf("бэкенд недоступен")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("чтение файла звука: %w", err)
	}
	if info.Size() > MaxSoundSize {
		return fmt.Errorf("el archivo es demasiado grande (máximo 2MB)")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("открытие файла звука: %w", err)
	}
	defer f.Close()

	if !isAudio(path, f) {
		return fmt.Errorf("selecciona un archivo de audio válido")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("перемотка файла: %w", err)
	}

	result, err := c.api.UploadNotificationSound(ctx, c.admin, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("загрузка звука: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("загрузка звука: %s", result.Error)
	}

	settings := c.Settings()
	settings.CustomSoundPath = result.FilePath
	settings.Sound = "custom"
	if err := c.UpdateSettings(settings); err != nil {
		return err
	}
	c.toaster.Toast("Sonido personalizado guardado correctamente", "success")
	return nil
}

// DeleteCustomSound удаляет звук на бэкенде и возвращает настройки
// на встроенный default.
func (c *Center) DeleteCustomSound(ctx context.Context) error {
	if c.api == nil {
		return fmt.Errorf("бэкенд недоступен")
	}
	if err := c.api.DeleteNotificationSound(ctx, c.admin); err != nil {
		return fmt.Errorf("удаление звука: %w", err)
	}

	settings := c.Settings()
	settings.CustomSoundPath = ""
	settings.Sound = "default"
	if err := c.UpdateSettings(settings); err != nil {
		return err
	}
	c.toaster.Toast("Sonido personalizado eliminado", "success")
	return nil
}

// isAudio проверяет MIME-тип по расширению, а при его отсутствии -
// по первым байтам содержимого
func isAudio(path string, f io.Reader) bool {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "audio/") {
		return true
	}
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(head[:n]), "audio/")
}
