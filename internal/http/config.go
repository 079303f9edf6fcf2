package http

import (
	"github.com/mrlokans/epubreader/internal/appearance"
	"github.com/mrlokans/epubreader/internal/chat"
	"github.com/mrlokans/epubreader/internal/covers"
	"github.com/mrlokans/epubreader/internal/crypto"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/entities"
	"github.com/mrlokans/epubreader/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database   *database.Store
	Books      BookStore
	Highlights AnnotationStore[entities.Highlight]
	Bookmarks  AnnotationStore[entities.Bookmark]
	Importer   BookImporter
	Library    AnnotatedBookLoader

	// Cover caching (optional)
	CoverCache *covers.Cache

	// Reader appearance and stored settings
	Appearance *appearance.State
	Settings   SettingsStore

	// AI assistant. Credentials seals the stored API key; nil stores it as is.
	Chat        *chat.Client
	Credentials *crypto.Encryptor

	// Task queue client (optional). Without it uploads and exports run inline.
	TaskClient *tasks.Client
	StagingDir string
	ExportDir  string

	// Upload limit in bytes; 0 means unlimited
	MaxUploadSize int64

	// Application info
	Version string
}
