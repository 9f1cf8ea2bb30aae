package models

import "time"

// User represents a registered account.
type User struct {
	BaseModel
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Email        string     `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	FullName     string     `gorm:"type:varchar(100)" json:"fullName,omitempty"`
	AvatarURL    string     `gorm:"type:varchar(255)" json:"avatarUrl,omitempty"`
	Status       string     `gorm:"type:varchar(20);default:'offline'" json:"status,omitempty"`
	LastSeenAt   *time.Time `json:"lastSeenAt,omitempty"`
	Bio          string     `gorm:"type:text" json:"bio,omitempty"`

	Messages      []Message       `gorm:"foreignKey:SenderID" json:"messages,omitempty"`
	Conversations []*Conversation `gorm:"many2many:conversation_participants;" json:"conversations,omitempty"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
