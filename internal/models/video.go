package models

import (
	"time"

	"gorm.io/gorm"
)

// Video is a published short video in the catalogue.
// The feed lists published videos newest first.
type Video struct {
	ID           string `gorm:"primaryKey;size:64" json:"id"`
	AuthorPubkey string `gorm:"size:64;index" json:"author_pubkey"`
	Title        string `json:"title"`

	// Renditions
	URL480p    string  `gorm:"column:url_480p" json:"url_480p"`
	URL720p    string  `gorm:"column:url_720p" json:"url_720p"`
	SizeLowMB  float64 `gorm:"default:0" json:"size_low_mb"`
	SizeHighMB float64 `gorm:"default:0" json:"size_high_mb"`
	DurationMs int     `gorm:"default:0" json:"duration_ms"`

	Published bool `gorm:"not null;default:false;index:idx_videos_feed,priority:1" json:"published"`

	// GORM fields
	CreatedAt time.Time      `gorm:"index:idx_videos_feed,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Video) TableName() string {
	return "videos"
}
