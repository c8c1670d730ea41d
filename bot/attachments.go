package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/egor/soportebot/models"
)

// MaxAttachmentSize - предел размера одного вложения
const MaxAttachmentSize = 16 << 20 // 16MB

// Ошибки валидации вложений
var (
	ErrNotDescribing = errors.New("adjuntar archivos sólo es posible al describir el problema")
	ErrFileType      = errors.New("tipo de archivo no permitido")
	ErrFileTooLarge  = errors.New("archivo demasiado grande")
	ErrBadIndex      = errors.New("índice de archivo fuera de rango")
)

// allowedExtensions - белый список расширений вложений
var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"pdf": true,
	"doc": true, "docx": true,
	"xls": true, "xlsx": true,
	"txt": true,
	"zip": true, "rar": true,
}

// imageExtensions - подмножество для вставки из буфера обмена
var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
}

// Attachment - вложение, подготовленное к отправке с тикетом.
// Path указывает на временный файл, куда виджет-сервер сложил содержимое.
type Attachment struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
	Path        string `json:"-"`
}

// AttachFile принимает вложение. Разрешено только в состоянии
// DESCRIBING_ISSUE; отклонённые файлы не попадают в контекст и
// сопровождаются подсказкой с именем файла. imagesOnly включает режим
// вставки из буфера обмена (только изображения).
func (e *Engine) AttachFile(att Attachment, imagesOnly bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateDescribingIssue {
		e.render.Toast("⚠️ Solo puedes adjuntar archivos cuando estés describiendo el problema", ToastError)
		return ErrNotDescribing
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(att.Name), "."))
	allowed := allowedExtensions[ext]
	if imagesOnly {
		allowed = imageExtensions[ext]
	}
	if !allowed {
		if imagesOnly {
			e.render.Toast("❌ Solo se permiten imágenes (PNG, JPG, GIF) al pegar", ToastError)
		} else {
			e.render.Toast(fmt.Sprintf("❌ %q no es un tipo de archivo permitido", att.Name), ToastError)
		}
		return fmt.Errorf("%w: %s", ErrFileType, att.Name)
	}

	if att.Size > MaxAttachmentSize {
		e.render.Toast(fmt.Sprintf("❌ %q es demasiado grande (máximo 16MB)", att.Name), ToastError)
		return fmt.Errorf("%w: %s", ErrFileTooLarge, att.Name)
	}

	e.sctx.attachedFiles = append(e.sctx.attachedFiles, att)
	e.render.Toast("✅ Archivo agregado. Se enviará junto con el ticket.", ToastSuccess)
	return nil
}

// RemoveFile убирает вложение по индексу (кнопка в превью виджета)
func (e *Engine) RemoveFile(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.sctx.attachedFiles) {
		return ErrBadIndex
	}
	att := e.sctx.attachedFiles[index]
	if att.Path != "" {
		if err := os.Remove(att.Path); err != nil {
			log.Printf("[bot] не удалось удалить временный файл %s: %v", att.Path, err)
		}
	}
	e.sctx.attachedFiles = append(e.sctx.attachedFiles[:index], e.sctx.attachedFiles[index+1:]...)
	return nil
}

// Attachments возвращает копию списка вложений
func (e *Engine) Attachments() []Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Attachment, len(e.sctx.attachedFiles))
	copy(out, e.sctx.attachedFiles)
	return out
}

// uploadAttachments грузит вложения по одному, в порядке прикрепления.
// Ошибка одной загрузки не прерывает остальные. Вызывается с удержанным
// мьютексом.
func (e *Engine) uploadAttachments(ctx context.Context, ticketID string) []models.UploadResult {
	var results []models.UploadResult
	for _, att := range e.sctx.attachedFiles {
		result := models.UploadResult{Filename: att.Name, Success: true}
		if err := e.uploadOne(ctx, ticketID, att); err != nil {
			log.Printf("[bot] загрузка %s в тикет %s не удалась: %v", att.Name, ticketID, err)
			result.Success = false
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

func (e *Engine) uploadOne(ctx context.Context, ticketID string, att Attachment) error {
	f, err := os.Open(att.Path)
	if err != nil {
		return fmt.Errorf("открытие вложения: %w", err)
	}
	defer f.Close()
	return e.api.UploadTicketFile(ctx, ticketID, att.Name, f, e.user.Username)
}

// cleanupAttachments удаляет временные файлы вложений с диска.
// Вызывается с удержанным мьютексом.
func (e *Engine) cleanupAttachments() {
	for _, att := range e.sctx.attachedFiles {
		if att.Path == "" {
			continue
		}
		if err := os.Remove(att.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("[bot] не удалось удалить временный файл %s: %v", att.Path, err)
		}
	}
}
