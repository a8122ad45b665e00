package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleGuide  Role = "guide"
	RoleClient Role = "client"
)

// User represents a user in the system (either a Guide or a Client).
// Guides additionally own a Guide profile document (1:1 by reference).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`

	// S3 object key of the profile image, empty until the user uploads one.
	ProfileImageKey string `bson:"profileImageKey,omitempty" json:"-"`

	IsVerified bool       `bson:"isVerified" json:"isVerified"`
	LastLogin  *time.Time `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsGuide() bool {
	return u.Role == RoleGuide
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}
