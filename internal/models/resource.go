package models

import "time"

// Resource is one uploaded course document. The row only describes the
// file; the bytes live in the upload directory under Filename.
type Resource struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title      string    `gorm:"type:text" json:"title"`
	Filename   string    `gorm:"type:text" json:"filename"`
	CourseCode string    `gorm:"type:text" json:"course_code"`
	Department string    `gorm:"type:text" json:"department"`
	Uploader   string    `gorm:"type:text" json:"uploader"`
	UploadedAt time.Time `gorm:"type:datetime" json:"uploaded_at"`
}

func (r *Resource) TableName() string {
	return "resources"
}
