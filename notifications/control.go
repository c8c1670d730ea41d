package notifications

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/egor/soportebot/models"
)

// TicketAPI - операции триажа тикетов на бэкенде. Реализуется *backend.Client.
type TicketAPI interface {
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error
	AssignTicket(ctx context.Context, ticketID, adminUsername string) error
	ReassignTicketUser(ctx context.Context, ticketID, username string) error
	RateTicket(ctx context.Context, ticketID string, rating int, comment string) error
}

// NewControl собирает локальный HTTP-интерфейс демона: панель админа
// читает через него журнал, меняет настройки и триажит тикеты из
// уведомлений. Слушать его стоит только на loopback.
func NewControl(center *Center, tickets TicketAPI) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/notifications", func(c *gin.Context) {
			items, err := center.OpenPopup()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка чтения журнала"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"notifications": items})
		})

		api.POST("/notifications/read", func(c *gin.Context) {
			if err := center.MarkAllRead(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка записи журнала"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.DELETE("/notifications/:ticketId", func(c *gin.Context) {
			if err := center.Remove(c.Param("ticketId")); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка записи журнала"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.DELETE("/notifications", func(c *gin.Context) {
			if err := center.ClearAll(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка записи журнала"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/settings", func(c *gin.Context) {
			c.JSON(http.StatusOK, center.Settings())
		})

		api.PUT("/settings", func(c *gin.Context) {
			var settings models.NotificationSettings
			if err := c.ShouldBindJSON(&settings); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "configuración no válida"})
				return
			}
			if err := center.UpdateSettings(settings); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, center.Settings())
		})

		api.POST("/settings/sound", uploadSoundHandler(center))

		api.DELETE("/settings/sound", func(c *gin.Context) {
			if err := center.DeleteCustomSound(c.Request.Context()); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, center.Settings())
		})

		api.POST("/settings/sound/test", func(c *gin.Context) {
			center.PlaySound(true)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		ticketsGroup := api.Group("/tickets")
		{
			ticketsGroup.PUT("/:id/status", func(c *gin.Context) {
				var req struct {
					Status string `json:"status" binding:"required"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "se requiere el estado"})
					return
				}
				ticketID := c.Param("id")
				if err := tickets.UpdateTicketStatus(c.Request.Context(), ticketID, req.Status); err != nil {
					c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
					return
				}
				// закрытый тикет убираем из журнала
				if req.Status == models.TicketStatusFinished {
					if err := center.Remove(ticketID); err != nil {
						c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка записи журнала"})
						return
					}
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			ticketsGroup.POST("/:id/assign", func(c *gin.Context) {
				var req struct {
					AdminUsername string `json:"admin_username" binding:"required"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "se requiere el técnico"})
					return
				}
				if err := tickets.AssignTicket(c.Request.Context(), c.Param("id"), req.AdminUsername); err != nil {
					c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			ticketsGroup.POST("/:id/reassign", func(c *gin.Context) {
				var req struct {
					Username string `json:"username" binding:"required"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "se requiere el usuario"})
					return
				}
				if err := tickets.ReassignTicketUser(c.Request.Context(), c.Param("id"), req.Username); err != nil {
					c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			ticketsGroup.POST("/:id/rate", func(c *gin.Context) {
				var req struct {
					Rating  int    `json:"rating" binding:"required,min=1,max=5"`
					Comment string `json:"comment"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "la calificación debe estar entre 1 y 5"})
					return
				}
				if err := tickets.RateTicket(c.Request.Context(), c.Param("id"), req.Rating, req.Comment); err != nil {
					c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})
		}
	}

	return r
}

// uploadSoundHandler принимает multipart-поле sound, складывает его во
// временный файл и передаёт центру на валидацию и загрузку
func uploadSoundHandler(center *Center) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("sound")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "se requiere el archivo de sonido"})
			return
		}

		// расширение сохраняем: по нему определяется MIME-тип
		tmp, err := os.CreateTemp("", "sonido-*"+filepath.Ext(fh.Filename))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось создать временный файл"})
			return
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := c.SaveUploadedFile(fh, tmp.Name()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось сохранить файл"})
			return
		}

		if err := center.UploadCustomSound(c.Request.Context(), tmp.Name()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, center.Settings())
	}
}
