package models

import "slices"

// AdminRole is the store role that may re-run bills.
const AdminRole = "admin"

// Credentials is the login request body.
type Credentials struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserSession mirrors the document store's session response.
type UserSession struct {
	OK    bool     `json:"ok"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the session carries role.
func (s UserSession) HasRole(role string) bool {
	return slices.Contains(s.Roles, role)
}
