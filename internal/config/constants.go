package config

// Default paths
const (
	// DefaultDatabasePath is the default path for the library database
	DefaultDatabasePath = "./epubreader.db"

	// DefaultCoversDir caches extracted cover images
	DefaultCoversDir = "./data/covers"

	// DefaultStagingDir holds uploads waiting for the import queue
	DefaultStagingDir = "./data/staging"

	// DefaultExportDir receives markdown annotation exports
	DefaultExportDir = "./data/export"
)
