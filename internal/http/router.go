package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional dependencies left nil in cfg disable their routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	// Bounds multipart parsing memory; the rest spills to temp files.
	router.MaxMultipartMemory = 32 << 20

	health := NewHealthController(cfg.Database, cfg.Version)
	if cfg.TaskClient != nil {
		health.AddProbe("tasks", cfg.TaskClient.Ping)
	}
	router.GET("/health", health.Status)

	api := router.Group("/api")

	// Books API endpoints
	if cfg.Books != nil {
		booksController := NewBooksController(cfg.Books, cfg.CoverCache)
		api.GET("/books", booksController.GetAllBooks)
		api.GET("/books/:id", booksController.GetBook)
		api.GET("/books/:id/content", booksController.GetContent)
		api.PUT("/books/:id/progress", booksController.UpdateProgress)
		api.DELETE("/books/:id", booksController.DeleteBook)

		if cfg.CoverCache != nil {
			coversController := NewCoversController(cfg.CoverCache, cfg.Books)
			api.GET("/books/:id/cover", coversController.GetCover)
		}

		if cfg.Importer != nil {
			uploadController := NewUploadController(cfg.Importer, cfg.TaskClient, cfg.StagingDir, cfg.MaxUploadSize)
			api.POST("/books", uploadController.Upload)
		}

		// Annotation endpoints
		if cfg.Highlights != nil && cfg.Bookmarks != nil {
			annotations := NewAnnotationsController(cfg.Books, cfg.Highlights, cfg.Bookmarks)
			api.GET("/books/:id/highlights", annotations.ListHighlights)
			api.POST("/books/:id/highlights", annotations.CreateHighlight)
			api.DELETE("/highlights/:id", annotations.DeleteHighlight)
			api.GET("/books/:id/bookmarks", annotations.ListBookmarks)
			api.POST("/books/:id/bookmarks", annotations.CreateBookmark)
			api.DELETE("/bookmarks/:id", annotations.DeleteBookmark)
		}

		// Export and task endpoints
		if cfg.TaskClient != nil || cfg.Library != nil {
			tasksController := NewTasksController(cfg.TaskClient, cfg.Books, cfg.Library, cfg.ExportDir)
			api.POST("/books/:id/export", tasksController.ExportBook)
			if cfg.TaskClient != nil {
				api.GET("/tasks/:id", tasksController.GetTaskStatus)
			}
		}
	}

	// Settings endpoints
	if cfg.Appearance != nil && cfg.Settings != nil {
		settingsController := NewSettingsController(cfg.Appearance, cfg.Settings, cfg.Credentials)
		api.GET("/settings/appearance", settingsController.GetAppearance)
		api.PUT("/settings/appearance", settingsController.UpdateAppearance)
		api.GET("/settings/ai-key", settingsController.GetAIKey)
		api.PUT("/settings/ai-key", settingsController.SetAIKey)
		api.DELETE("/settings/ai-key", settingsController.DeleteAIKey)
	}

	// AI chat endpoint
	if cfg.Chat != nil && cfg.Settings != nil {
		chatController := NewChatController(cfg.Chat, cfg.Settings, cfg.Credentials)
		api.POST("/chat", chatController.Chat)
	}

	return router
}
