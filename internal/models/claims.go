package models

import "github.com/golang-jwt/jwt/v5"

// Application permissions
const (
	PermissionPaymentRead   = "payment:read"
	PermissionPaymentCharge = "payment:charge"
)

// RoleAdmin is the only role that can reach the admin endpoints.
const RoleAdmin = "admin"

type AdminClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *AdminClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionPaymentRead,
			PermissionPaymentCharge,
		}
	default:
		return []string{}
	}
}
