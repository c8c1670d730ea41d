package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/egor/soportebot/backend"
)

// Login проксирует авторизацию на внешний бэкенд заявок
func Login(c *gin.Context) {
	var credentials struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&credentials); err != nil {
		log.Printf("Ошибка парсинга данных для авторизации: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Попытка авторизации для пользователя: %s", credentials.Username)

	result, err := api.Login(c.Request.Context(), credentials.Username, credentials.Password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "credenciales incorrectas"})
			return
		}
		log.Printf("Ошибка аутентификации для %s: %v", credentials.Username, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "бэкенд недоступен"})
		return
	}

	log.Printf("Успешная авторизация пользователя: %s", result.User.Username)
	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  result.User,
	})
}

// Health отвечает на проверку живости сервера виджета
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": SessionCount(),
	})
}

// GetKnowledgeBase отдаёт дерево сценариев виджету как есть:
// порядок ключей в JSON определяет порядок кнопок меню
func GetKnowledgeBase(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", base.Raw())
}
