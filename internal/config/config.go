package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Library
		Tasks
		Export
		Chat
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Library struct {
		CoversDir     string
		MaxUploadSize int64 // bytes
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
		StagingDir      string
	}
	Export struct {
		Dir      string
		Enabled  bool   // Scheduled export
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Chat struct {
		BaseURL string
		Model   string
		// SecretKey seals the stored API key. Base64 of 32 bytes, or any
		// passphrase. Without it the key is stored in plain text.
		SecretKey string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("covers_dir", DefaultCoversDir)
	v.SetDefault("max_upload_size", 200<<20)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_staging_dir", DefaultStagingDir)

	// Annotation export defaults
	v.SetDefault("export_dir", DefaultExportDir)
	v.SetDefault("export_enabled", false)
	v.SetDefault("export_schedule", "0 3 * * *")

	// Chat defaults
	v.SetDefault("chat_base_url", "https://api.openai.com/v1")
	v.SetDefault("chat_model", "gpt-4o")
	v.SetDefault("chat_secret_key", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Library: Library{
			CoversDir:     v.GetString("COVERS_DIR"),
			MaxUploadSize: v.GetInt64("MAX_UPLOAD_SIZE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
			StagingDir:      v.GetString("TASK_STAGING_DIR"),
		},
		Export: Export{
			Dir:      v.GetString("EXPORT_DIR"),
			Enabled:  v.GetBool("EXPORT_ENABLED"),
			Schedule: v.GetString("EXPORT_SCHEDULE"),
		},
		Chat: Chat{
			BaseURL:   v.GetString("CHAT_BASE_URL"),
			Model:     v.GetString("CHAT_MODEL"),
			SecretKey: v.GetString("CHAT_SECRET_KEY"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
