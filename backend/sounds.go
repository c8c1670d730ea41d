package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// SoundInfo - ответ бэкенда о пользовательском звуке уведомления
type SoundInfo struct {
	Success        bool   `json:"success"`
	HasCustomSound bool   `json:"hasCustomSound"`
	SoundPath      string `json:"soundPath,omitempty"`
}

// SoundUploadResult - ответ на загрузку пользовательского звука
type SoundUploadResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filePath,omitempty"`
	Error    string `json:"error,omitempty"`
}

// UploadNotificationSound загружает звук уведомления для админа
// (POST /api/upload-notification-sound, поля sound и username).
// Размер и MIME-тип файла проверяет вызывающая сторона.
func (c *Client) UploadNotificationSound(ctx context.Context, username, filename string, file io.Reader) (*SoundUploadResult, error) {
	fields := map[string]string{"username": username}
	var out SoundUploadResult
	if err := c.doMultipart(ctx, "/api/upload-notification-sound", "sound", filename, file, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNotificationSound проверяет, есть ли у админа загруженный звук
// (GET /api/get-notification-sound?username=).
func (c *Client) GetNotificationSound(ctx context.Context, username string) (*SoundInfo, error) {
	var out SoundInfo
	path := "/api/get-notification-sound?username=" + url.QueryEscape(username)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNotificationSound удаляет пользовательский звук админа
// (POST /api/delete-notification-sound).
func (c *Client) DeleteNotificationSound(ctx context.Context, username string) error {
	body := map[string]string{"username": username}
	return c.doJSON(ctx, http.MethodPost, "/api/delete-notification-sound", body, nil)
}
