package domain

import "time"

// UploadedFile Model, metadata for a file stored in the upload directory
type UploadedFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Filename     string    `gorm:"size:255;uniqueIndex;not null" json:"filename"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	UploadedBy   string    `gorm:"size:32;not null" json:"uploaded_by"`
	FileType     string    `gorm:"size:16" json:"file_type"`
	UploadDate   time.Time `gorm:"index" json:"upload_date"`
}
