package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserProfile is the cached profile written by the login flow.
type UserProfile struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	ProfilePic string `json:"profilePic,omitempty"`
	Type       string `json:"type"`
}

func (p UserProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

type Session struct {
	Token string
	User  UserProfile
}

// JWT claims issued by the stub cart API

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
