package gormdb

import (
	"time"

	"github.com/kozaktomas/attendance/internal/database"
)

type studentModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	RegNo     string `gorm:"column:reg_no;size:64;not null;uniqueIndex"`
	Name      string `gorm:"size:255;not null"`
	Course    string `gorm:"size:255;not null;default:''"`
	Mobile    string `gorm:"size:32;not null;default:''"`
	PhotoPath string `gorm:"column:photo_path;type:text;not null"`
	CreatedAt time.Time
}

func (studentModel) TableName() string { return "students" }

func (m studentModel) toStudent() database.Student {
	return database.Student{
		ID:                 m.ID,
		RegistrationNumber: m.RegNo,
		Name:               m.Name,
		Course:             m.Course,
		Mobile:             m.Mobile,
		PhotoPath:          m.PhotoPath,
		CreatedAt:          m.CreatedAt,
	}
}

type attendanceModel struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	StudentID       int64   `gorm:"not null;uniqueIndex:idx_attendance_student_date,priority:1"`
	Date            string  `gorm:"size:10;not null;uniqueIndex:idx_attendance_student_date,priority:2;index"`
	Time            string  `gorm:"size:8;not null"`
	MatchPercentage float64 `gorm:"not null;default:0"`
}

func (attendanceModel) TableName() string { return "attendance" }

type templateModel struct {
	StudentID int64     `gorm:"primaryKey;autoIncrement:false"`
	PhotoHash string    `gorm:"size:64;not null"`
	Embedding []float32 `gorm:"serializer:json;not null"`
	Model     string    `gorm:"size:100;not null;default:''"`
	Dim       int       `gorm:"not null"`
	CreatedAt time.Time
}

func (templateModel) TableName() string { return "face_templates" }
