package models

// User представляет собой авторизованного пользователя виджета.
// Поля соответствуют ответу бэкенда на /api/auth/verify и /api/login.
type User struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups,omitempty"`
	Rol      string   `json:"rol,omitempty"` // "admin" открывает панель администрирования
}

// AdminInfo представляет собой техника из списка /api/admins
type AdminInfo struct {
	Username string `json:"username"`
}

// IsAdmin сообщает, имеет ли пользователь административную роль
func (u User) IsAdmin() bool {
	return u.Rol == "admin"
}
