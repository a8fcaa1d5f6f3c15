// Package domain contains the persistence model for site accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a registered site account. Payments and subscriptions hold weak
// references to it; a missing user is never an error.
type User struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Email       string       `json:"email" gorm:"type:text;not null"`
	DisplayName string       `json:"display_name" gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }
