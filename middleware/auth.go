package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/patrickmn/go-cache"

	"github.com/egor/soportebot/models"
)

// Verifier проверяет токен у внешнего бэкенда
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

var (
	verifier Verifier

	// Кэш проверенных токенов. Бэкенд проверяет подпись сам,
	// мы лишь не ходим к нему на каждый запрос.
	verifyCache = cache.New(5*time.Minute, 10*time.Minute)
)

const defaultVerifyTTL = 5 * time.Minute

// Init задаёт клиента бэкенда для проверки токенов
func Init(v Verifier) {
	verifier = v
}

// Verify проверяет токен: сперва кэш, затем бэкенд.
// Успешный результат кэшируется до истечения токена.
func Verify(ctx context.Context, token string) (*models.User, error) {
	if verifier == nil {
		return nil, errors.New("middleware: верификатор не инициализирован")
	}
	if cached, ok := verifyCache.Get(token); ok {
		user := cached.(models.User)
		return &user, nil
	}
	user, err := verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	verifyCache.Set(token, *user, cacheTTL(token))
	return user, nil
}

// cacheTTL читает exp токена без проверки подписи, чтобы не
// кэшировать результат дольше жизни самого токена
func cacheTTL(token string) time.Duration {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return defaultVerifyTTL
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return defaultVerifyTTL
	}
	ttl := time.Until(time.Unix(int64(exp), 0))
	if ttl <= 0 {
		return time.Second
	}
	if ttl > defaultVerifyTTL {
		return defaultVerifyTTL
	}
	return ttl
}

// AuthMiddleware проверяет токен и кладёт пользователя в контекст
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Получаем токен из заголовка
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			c.Abort()
			return
		}

		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
		user, err := Verify(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный или устаревший токен"})
			c.Abort()
			return
		}

		// Устанавливаем данные пользователя в контексте
		c.Set("user", *user)

		c.Next()
	}
}

// UserFromContext достаёт пользователя, положенного AuthMiddleware
func UserFromContext(c *gin.Context) (models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
