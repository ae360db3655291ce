package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the upstream's account record as cached by the portal.
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Role       UserRole   `json:"role"`
	IsActive   bool       `json:"is_active"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	DateJoined *time.Time `json:"date_joined,omitempty"`
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Initial is the avatar letter shown in the navbar and tables.
func (u User) Initial() string {
	name := strings.TrimSpace(u.FullName)
	if name == "" {
		return "U"
	}
	return strings.ToUpper(string([]rune(name)[:1]))
}

func (u User) DisplayName() string {
	if u.FullName == "" {
		return "User"
	}
	return u.FullName
}

func (u User) RoleLabel() string {
	if u.IsAdmin() {
		return "Admin"
	}
	return "User"
}

func (u User) RoleTitle() string {
	if u.IsAdmin() {
		return "Administrator"
	}
	return "User"
}

func (u User) StatusLabel() string {
	if u.IsActive {
		return "Active"
	}
	return "Banned"
}

func (u User) LastLoginLabel() string {
	if u.LastLogin == nil {
		return "Never"
	}
	return u.LastLogin.Format("Jan 2, 2006")
}

func (u User) JoinedLabel() string {
	if u.DateJoined == nil {
		return ""
	}
	return u.DateJoined.Format("January 2, 2006")
}

// Session is the portal's belief about who is logged in for one browser session.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// IsAuthenticated holds iff both an access token and a user record are present.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}
