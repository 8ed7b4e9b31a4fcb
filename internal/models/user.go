package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) CanAuthor() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// User mirrors a Casdoor account; it is not persisted locally.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"fullName"`
	Email         string    `json:"email"`
	Role          UserRole  `json:"role"`
	AvatarURL     *string   `json:"avatarUrl"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Group struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:100;index"`
	Description *string   `json:"description" gorm:"type:text"`
	CreatedBy   string    `json:"createdBy" gorm:"not null;index;size:255"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Members []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

func (Group) TableName() string {
	return "groups"
}

type GroupMember struct {
	GroupID   uint      `json:"groupId" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"primaryKey;size:255;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// All lists the persisted models in migration order.
func All() []any {
	return []any{
		&Subject{},
		&Category{},
		&Passage{},
		&Question{},
		&Option{},
		&Group{},
		&GroupMember{},
		&Assessment{},
		&AssessmentQuestion{},
		&AssessmentAttempt{},
		&AttemptAnswer{},
	}
}
