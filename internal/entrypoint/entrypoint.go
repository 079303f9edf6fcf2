package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/appearance"
	"github.com/mrlokans/epubreader/internal/chat"
	"github.com/mrlokans/epubreader/internal/config"
	"github.com/mrlokans/epubreader/internal/covers"
	"github.com/mrlokans/epubreader/internal/crypto"
	"github.com/mrlokans/epubreader/internal/database"
	"github.com/mrlokans/epubreader/internal/database/annotations"
	"github.com/mrlokans/epubreader/internal/database/books"
	"github.com/mrlokans/epubreader/internal/database/settings"
	"github.com/mrlokans/epubreader/internal/exporters"
	http_controllers "github.com/mrlokans/epubreader/internal/http"
	"github.com/mrlokans/epubreader/internal/importer"
	"github.com/mrlokans/epubreader/internal/scheduler"
	"github.com/mrlokans/epubreader/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

// NewCredentials builds the sealer for stored API keys from the configured
// secret: a base64 key if it decodes to one, otherwise a passphrase.
// It returns nil when no secret is configured.
func NewCredentials(secret string) (*crypto.Encryptor, error) {
	if secret == "" {
		return nil, nil
	}
	if enc, err := crypto.NewEncryptorFromBase64(secret); err == nil {
		return enc, nil
	}
	return crypto.NewEncryptorFromPassphrase(secret)
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting EPUB Reader v%s", version)

	store, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	booksRepo := books.NewRepository(store.DB)
	highlights := annotations.NewHighlights(store.DB)
	bookmarks := annotations.NewBookmarks(store.DB)
	settingsRepo := settings.NewRepository(store.DB)
	library := exporters.NewLibrary(booksRepo, highlights, bookmarks)

	// No rendering engine runs server-side; metadata comes with the upload.
	imp := importer.New(booksRepo, nil)

	coverCache, err := covers.NewCache(cfg.Library.CoversDir)
	if err != nil {
		log.Printf("WARNING: Failed to initialize cover cache: %v", err)
		coverCache = nil
	} else {
		log.Printf("Cover cache initialized at %s", coverCache.CacheDir())
	}

	// Appearance survives restarts through the settings table
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persister := appearance.NewPersister(settingsRepo)
	initial, err := persister.Load(ctx)
	if err != nil {
		log.Printf("WARNING: %v; using defaults", err)
	}
	appearanceState := appearance.NewState(initial)
	go persister.Watch(ctx, appearanceState)

	credentials, err := NewCredentials(cfg.Chat.SecretKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential sealing: %v", err)
	}
	if credentials == nil {
		log.Printf("WARNING: CHAT_SECRET_KEY is not set. The AI API key will be stored unencrypted.")
	}
	chatClient := chat.NewClient(cfg.Chat.BaseURL, "", cfg.Chat.Model)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
			StagingDir:      cfg.Tasks.StagingDir,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewImportBookQueue(imp),
			tasks.NewExportBookQueue(library),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	exportScheduler := scheduler.NewExportScheduler(library, scheduler.Config{
		Enabled:   cfg.Export.Enabled,
		Schedule:  cfg.Export.Schedule,
		ExportDir: cfg.Export.Dir,
	})
	if err := exportScheduler.Start(ctx); err != nil {
		log.Printf("WARNING: Failed to start export scheduler: %v", err)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      store,
		Books:         booksRepo,
		Highlights:    highlights,
		Bookmarks:     bookmarks,
		Importer:      imp,
		Library:       library,
		CoverCache:    coverCache,
		Appearance:    appearanceState,
		Settings:      settingsRepo,
		Chat:          chatClient,
		Credentials:   credentials,
		TaskClient:    taskClient,
		StagingDir:    cfg.Tasks.StagingDir,
		ExportDir:     cfg.Export.Dir,
		MaxUploadSize: cfg.Library.MaxUploadSize,
		Version:       version,
	})

	onShutdown := func(ctx context.Context) {
		exportScheduler.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		cancel()
	}

	Serve(router, cfg, onShutdown)
}
