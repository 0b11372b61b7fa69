package api

import (
	"errors"                     // Error classification
	"fmt"                        // Error wrapping
	"net/http"                   // HTTP status codes
	"os"                         // File removal
	"path/filepath"              // Path handling
	"regexp"                     // Filename sanitizing
	"strings"                    // String manipulation
	"tabletop/internal/domain"   // Importing domain models
	"tabletop/internal/realtime" // Broadcasts
	"time"                       // Upload timestamp

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Stored filename prefix
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// allowedExtensions is the upload allow-list, lower case without the dot
var allowedExtensions = map[string]bool{
	"txt": true, "pdf": true, "png": true, "jpg": true, "jpeg": true,
	"gif": true, "doc": true, "docx": true, "webp": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-]
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.TrimLeft(name, "._")
}

// FileEvent is the payload of file_uploaded
type FileEvent struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	UploadedBy   string `json:"uploaded_by"`
	FileType     string `json:"file_type"`
	URL          string `json:"url"`
}

func fileURL(stored string) string {
	return "/files/" + stored
}

// UploadFileHandler stores an allow-listed file and records its metadata
func UploadFileHandler(db *gorm.DB, pub realtime.Publisher, uploadDir string, maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Leave room for the multipart framing around the file
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+64*1024)
		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				respondError(c, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, maxSize))
				return
			}
			respondError(c, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrValidation))
			return
		}
		if header.Size > maxSize {
			respondError(c, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, maxSize))
			return
		}
		clean := sanitizeFilename(header.Filename)
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(clean), "."))
		if clean == "" || !allowedExtensions[ext] {
			respondError(c, fmt.Errorf("%w: file type %q is not allowed", domain.ErrValidation, ext))
			return
		}

		id := identity(c)
		stored := uuid.NewString() + "_" + clean
		path := filepath.Join(uploadDir, stored)
		if err := c.SaveUploadedFile(header, path); err != nil {
			respondError(c, fmt.Errorf("%w: save upload: %v", domain.ErrStorage, err))
			return
		}
		record := domain.UploadedFile{
			Filename:     stored,
			OriginalName: header.Filename,
			UploadedBy:   id.Username,
			FileType:     ext,
			UploadDate:   time.Now().UTC(),
		}
		if err := db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
			// No row, no file
			if rmErr := os.Remove(path); rmErr != nil {
				logrus.WithFields(logrus.Fields{"path": path, "error": rmErr.Error()}).Error("Failed to remove orphaned upload")
			}
			respondError(c, fmt.Errorf("%w: record upload: %v", domain.ErrStorage, err))
			return
		}

		event := FileEvent{
			Filename:     record.Filename,
			OriginalName: record.OriginalName,
			UploadedBy:   record.UploadedBy,
			FileType:     record.FileType,
			URL:          fileURL(record.Filename),
		}
		pub.Publish(realtime.RoomCampaign, realtime.EventFileUploaded, event)
		logrus.WithFields(logrus.Fields{
			"filename":    record.Filename,
			"size":        header.Size,
			"uploaded_by": id.Username,
		}).Info("File uploaded")
		c.JSON(http.StatusCreated, gin.H{"success": true, "file": event})
	}
}

// ServeFileHandler serves a stored upload by its stored name
func ServeFileHandler(uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		// Only bare names produced by UploadFileHandler are served
		if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, "/\\") {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid file name"})
			return
		}
		path := filepath.Join(uploadDir, name)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "file not found"})
			return
		}
		c.File(path)
	}
}

// ListFilesHandler lists uploads, newest first
func ListFilesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var files []domain.UploadedFile
		if err := db.WithContext(c.Request.Context()).Order("upload_date desc").Order("id desc").Find(&files).Error; err != nil {
			respondError(c, fmt.Errorf("%w: list files: %v", domain.ErrStorage, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "files": files})
	}
}
