package model

import (
	"time"

	"gorm.io/gorm"
)

// RoleTechnician is the only role the assignment policy considers.
const RoleTechnician = "technician"

// Technician represents a support user that tickets can be assigned to
type Technician struct {
	ID           string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name         string         `json:"name" gorm:"type:varchar(255);not null"`
	Email        string         `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Role         string         `json:"role" gorm:"type:varchar(32);not null;default:technician"`
	IsActive     bool           `json:"is_active"`
	IsOnline     bool           `json:"is_online"`
	SupportAreas []string       `json:"support_areas" gorm:"serializer:json;type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Technician
func (Technician) TableName() string {
	return "technicians"
}

// SupportArea is a topic within a department, tagged with keywords
type SupportArea struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Department string    `json:"department" gorm:"type:varchar(255);index"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	Keywords   []string  `json:"keywords" gorm:"serializer:json;type:text"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for SupportArea
func (SupportArea) TableName() string {
	return "support_areas"
}
