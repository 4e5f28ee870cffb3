package postgres

import "time"

// GormCachePage is the GORM model of the cache_pages table
type GormCachePage struct {
	Path             string    `gorm:"primaryKey"`
	HTML             string    `gorm:"column:html;not null"`
	Title            *string   `gorm:"column:title"`
	Description      *string   `gorm:"column:description"`
	CanonicalURL     *string   `gorm:"column:canonical_url"`
	GenerationTimeMs int64     `gorm:"column:generation_time_ms;not null;default:0"`
	HTMLSizeBytes    int64     `gorm:"column:html_size_bytes;not null;default:0"`
	ExpiresAt        time.Time `gorm:"column:expires_at;index;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;index;not null;autoUpdateTime:false"`
}

func (GormCachePage) TableName() string {
	return "cache_pages"
}
