package http

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/epubreader/internal/importer"
	"github.com/mrlokans/epubreader/internal/tasks"
	"github.com/mrlokans/epubreader/internal/validation"
)

// UploadController adds EPUB files to the library.
type UploadController struct {
	importer   BookImporter
	taskClient *tasks.Client
	stagingDir string
	maxSize    int64
}

func NewUploadController(imp BookImporter, taskClient *tasks.Client, stagingDir string, maxSize int64) *UploadController {
	return &UploadController{
		importer:   imp,
		taskClient: taskClient,
		stagingDir: stagingDir,
		maxSize:    maxSize,
	}
}

// Upload handles POST /api/books (multipart form with a "file" field and
// optional "title", "author" and "cover" fields).
//
// With a task queue the file is staged and imported in the background
// (202 with the task id); otherwise it is imported inline (201 with the book).
func (uc *UploadController) Upload(c *gin.Context) {
	if uc.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uc.maxSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		respondBadRequest(c, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondBadRequest(c, "could not read uploaded file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(c, "could not read uploaded file")
		return
	}

	upload := importer.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
		Title:       c.PostForm("title"),
		Author:      c.PostForm("author"),
		Cover:       c.PostForm("cover"),
	}

	if err := importer.Validate(upload); err != nil {
		respondBadRequest(c, importErrorMessage(err))
		return
	}

	if uc.taskClient != nil {
		uc.enqueue(c, upload)
		return
	}

	book, err := uc.importer.Import(c.Request.Context(), upload)
	if err != nil {
		uc.respondImportError(c, err)
		return
	}
	respondCreated(c, newBookResponse(*book))
}

func (uc *UploadController) enqueue(c *gin.Context, upload importer.Upload) {
	path, err := tasks.StageUpload(uc.stagingDir, upload.Content)
	if err != nil {
		respondInternalError(c, err, "stage upload")
		return
	}

	taskID, err := uc.taskClient.EnqueueImport(tasks.ImportBookTask{
		StagedPath:  path,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Title:       upload.Title,
		Author:      upload.Author,
		Cover:       upload.Cover,
	})
	if err != nil {
		os.Remove(path)
		respondInternalError(c, err, "enqueue import")
		return
	}

	log.Printf("[IMPORT] Queued %s as task %s", upload.Filename, taskID)
	respondAccepted(c, "import queued", gin.H{"task_id": taskID})
}

func (uc *UploadController) respondImportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, importer.ErrInvalidFileType),
		errors.Is(err, importer.ErrCorruptDocument):
		respondBadRequest(c, importErrorMessage(err))
	case validation.IsValidationError(err):
		respondValidationError(c, err)
	default:
		respondInternalError(c, err, "import book")
	}
}

func importErrorMessage(err error) string {
	if errors.Is(err, importer.ErrInvalidFileType) {
		return importer.ErrInvalidFileType.Error()
	}
	return err.Error()
}
