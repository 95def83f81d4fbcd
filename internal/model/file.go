package model

import (
	"time"

	"github.com/google/uuid"
)

type FileStatus string

const (
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
	FileStatusDeleted    FileStatus = "deleted"
)

func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusProcessing, FileStatusCompleted, FileStatusFailed, FileStatusDeleted:
		return true
	}
	return false
}

// File is the registry entry for one ingested source artifact. Every
// vector-store write is traceable to exactly one File row.
type File struct {
	BaseModel
	CollectionID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"collection_id"`
	OriginalFilename string     `gorm:"size:500;not null" json:"original_filename"`
	StoredPath       string     `gorm:"size:1000" json:"stored_path"`
	Size             int64      `gorm:"not null;default:0" json:"size"`
	ContentType      string     `gorm:"size:100" json:"content_type"`
	PluginName       string     `gorm:"size:100" json:"plugin_name"`
	PluginParams     JSONMap    `gorm:"type:jsonb" json:"plugin_params"`
	Status           FileStatus `gorm:"size:50;not null;default:'processing'" json:"status"`
	DocumentCount    int        `gorm:"default:0" json:"document_count"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	Owner            string     `gorm:"size:255" json:"owner"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`

	// Relations
	Collection *Collection `gorm:"foreignKey:CollectionID" json:"collection,omitempty"`
}

func (File) TableName() string {
	return "kb_files"
}
