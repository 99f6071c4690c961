package domain

import "time"

type Role string

const (
	RolePatient      Role = "patient"
	RoleProfessional Role = "professional"
)

type Profile struct {
	ID         string    `bson:"_id" json:"id"`
	Username   string    `bson:"username" json:"username"`
	FirstName  string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName   string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	AvatarURL  string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Role       Role      `bson:"role" json:"role"`
	IsVerified bool      `bson:"is_verified" json:"is_verified"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// DisplayName falls back to the username when no real name is set.
func (p *Profile) DisplayName() string {
	if p.FirstName == "" && p.LastName == "" {
		return p.Username
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
