package model

// Course 课程表 — 对应 courses
type Course struct {
	CourseID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	TeacherID   string  `gorm:"type:uuid;not null;index"                       json:"teacher_id"`
	Title       string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Description string  `gorm:"type:text;not null;default:''"                  json:"description"`
	CoverURL    *string `gorm:"type:varchar(500)"                              json:"cover_url,omitempty"`
	Category    string  `gorm:"type:varchar(50);not null;default:''"           json:"category"`
	IsActive    bool    `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel

	// 关联
	Teacher *User `gorm:"foreignKey:TeacherID;references:UserID" json:"teacher,omitempty"`
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// Section 课程章节表 — 对应 course_sections
type Section struct {
	SectionID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"section_id"`
	CourseID    string  `gorm:"type:uuid;not null;index"                       json:"course_id"`
	Title       string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Content     string  `gorm:"type:text;not null;default:''"                  json:"content"`
	MaterialURL *string `gorm:"type:varchar(500)"                              json:"material_url,omitempty"`
	VideoURL    *string `gorm:"type:varchar(500)"                              json:"video_url,omitempty"`
	OrderIndex  int     `gorm:"not null;default:0"                             json:"order_index"`
	BaseModel
}

// TableName 指定表名
func (Section) TableName() string { return "course_sections" }
