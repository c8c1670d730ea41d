package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/egor/soportebot/bot"
	"github.com/egor/soportebot/middleware"
)

// sessionFromRequest находит сессию по :id и проверяет,
// что она принадлежит аутентифицированному пользователю
func sessionFromRequest(c *gin.Context) (*session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "идентификатор сессии некорректен"})
		return nil, false
	}

	s, ok := getSession(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "сессия не найдена"})
		return nil, false
	}

	user, ok := middleware.UserFromContext(c)
	if !ok || user.Username != s.user.Username {
		c.JSON(http.StatusForbidden, gin.H{"error": "сессия принадлежит другому пользователю"})
		return nil, false
	}
	return s, true
}

// rejectedFile описывает отклонённое вложение в ответе
type rejectedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadSessionFiles принимает multipart-файлы и прикрепляет их
// к текущему диалогу. Отклонённые файлы не прерывают остальные.
func UploadSessionFiles(c *gin.Context) {
	s, ok := sessionFromRequest(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "требуется multipart-форма"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "файлы не переданы"})
		return
	}

	// true при вставке из буфера обмена: тогда годятся только картинки
	imagesOnly := c.PostForm("images_only") == "true"

	attached := []bot.Attachment{}
	rejected := []rejectedFile{}

	for _, fh := range files {
		att, err := stageFile(s, fh)
		if err != nil {
			log.Printf("[files] не удалось сохранить %q: %v", fh.Filename, err)
			reason := "no se pudo guardar el archivo"
			if errors.Is(err, bot.ErrFileTooLarge) {
				reason = err.Error()
			}
			rejected = append(rejected, rejectedFile{Filename: fh.Filename, Error: reason})
			continue
		}
		if err := s.engine.AttachFile(att, imagesOnly); err != nil {
			os.Remove(att.Path)
			rejected = append(rejected, rejectedFile{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		att.Path = ""
		attached = append(attached, att)
	}

	c.JSON(http.StatusOK, gin.H{
		"attached": attached,
		"rejected": rejected,
		"total":    len(s.engine.Attachments()),
	})
}

// stageFile копирует загруженный файл во временный каталог сессии.
// Слишком большие файлы отклоняются до записи на диск.
func stageFile(s *session, fh *multipart.FileHeader) (bot.Attachment, error) {
	if fh.Size > bot.MaxAttachmentSize {
		return bot.Attachment{}, fmt.Errorf("%w: %s", bot.ErrFileTooLarge, fh.Filename)
	}

	src, err := fh.Open()
	if err != nil {
		return bot.Attachment{}, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.tmpDir, "adjunto-*")
	if err != nil {
		return bot.Attachment{}, err
	}
	written, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return bot.Attachment{}, err
	}

	return bot.Attachment{
		Name:        filepath.Base(fh.Filename),
		Size:        written,
		ContentType: fh.Header.Get("Content-Type"),
		Path:        tmp.Name(),
	}, nil
}

// ListSessionFiles возвращает прикреплённые к диалогу файлы
func ListSessionFiles(c *gin.Context) {
	s, ok := sessionFromRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": s.engine.Attachments()})
}

// RemoveSessionFile открепляет файл по индексу
func RemoveSessionFile(c *gin.Context) {
	s, ok := sessionFromRequest(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "индекс некорректен"})
		return
	}

	if err := s.engine.RemoveFile(index); err != nil {
		if errors.Is(err, bot.ErrBadIndex) {
			c.JSON(http.StatusNotFound, gin.H{"error": "файл не найден"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": s.engine.Attachments()})
}
