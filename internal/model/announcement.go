package model

import "time"

// Announcement 系统公告 — 对应 announcements
type Announcement struct {
	AnnouncementID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"announcement_id"`
	Title          string `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string `gorm:"type:text;not null"                             json:"content"`
	CreatedBy      string `gorm:"type:uuid;not null"                             json:"created_by"`
	IsActive       bool   `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Announcement) TableName() string { return "announcements" }

// Resource 上传文件记录 — 对应 resources
type Resource struct {
	ResourceID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"resource_id"`
	Filename   string    `gorm:"type:varchar(255);not null"                     json:"filename"`
	StorageKey string    `gorm:"type:varchar(500);not null"                     json:"-"`
	URL        string    `gorm:"type:varchar(500);not null"                     json:"url"`
	FileType   string    `gorm:"type:varchar(100);not null;default:''"          json:"file_type"`
	SizeBytes  int64     `gorm:"not null;default:0"                             json:"size_bytes"`
	CreatedBy  string    `gorm:"type:uuid;not null;index"                       json:"created_by"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Resource) TableName() string { return "resources" }
