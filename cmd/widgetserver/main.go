package main

import (
	"log"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/egor/soportebot/backend"
	"github.com/egor/soportebot/bot"
	"github.com/egor/soportebot/handlers"
	"github.com/egor/soportebot/kb"
	"github.com/egor/soportebot/middleware"
	"github.com/egor/soportebot/websocket"
)

func main() {
	// Переменные окружения из .env (если есть)
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	// Загрузка дерева сценариев поддержки
	kbPath := os.Getenv("KB_PATH")
	if kbPath == "" {
		kbPath = "knowledge_base.json"
	}
	base, err := kb.Load(kbPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки базы сценариев %s: %v", kbPath, err)
	}
	log.Printf("База сценариев загружена: %d категорий, %d политик",
		base.CasosSoporte.Len(), base.Politicas.Len())

	// Клиент внешнего бэкенда заявок
	api := backend.New()
	middleware.Init(api)

	// Инициализация роутера Gin
	r := gin.Default()

	// Добавляем middleware для логирования
	r.Use(middleware.Logger())

	// Настройка CORS для взаимодействия с фронтендом
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// Инициализация WebSocket хаба
	hub := websocket.NewHub()
	go hub.Run()
	handlers.Configure(base, api, hub, bot.DefaultDelays())

	// API эндпоинты
	apiGroup := r.Group("/api")
	{
		// Авторизация (публичный, проксируется на бэкенд)
		apiGroup.POST("/auth/login", handlers.Login)

		// Дерево сценариев для виджета
		apiGroup.GET("/knowledge-base", handlers.GetKnowledgeBase)

		// Защищенные маршруты
		authorized := apiGroup.Group("/")
		authorized.Use(middleware.AuthMiddleware())
		{
			sessions := authorized.Group("/sessions")
			{
				sessions.GET("/:id/files", handlers.ListSessionFiles)
				sessions.POST("/:id/files", handlers.UploadSessionFiles)
				sessions.DELETE("/:id/files/:index", handlers.RemoveSessionFile)
			}
		}
	}

	// WebSocket эндпоинт виджета
	r.GET("/ws", handlers.ServeWs)

	// Проверка живости
	r.GET("/healthz", handlers.Health)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Запуск сервера
	log.Printf("Сервер виджета запущен на порту :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// allowedOrigins собирает список CORS-origins из окружения
func allowedOrigins() []string {
	origins := []string{"http://localhost:3000"}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	if additional := os.Getenv("ADDITIONAL_ALLOWED_ORIGINS"); additional != "" {
		for _, url := range strings.Split(additional, ",") {
			url = strings.TrimSpace(url)
			if url != "" {
				origins = append(origins, url)
			}
		}
	}
	return origins
}
