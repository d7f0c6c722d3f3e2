package authz

import "realty/internal/models"

func IsAdmin(role models.Role) bool {
	return role == models.RoleAdmin
}

// IsValid reports whether role is one of the known roles.
func IsValid(role models.Role) bool {
	switch role {
	case models.RoleBuyer, models.RoleSeller, models.RoleAgent, models.RoleCompanyAdmin, models.RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable: роли, которые можно выбрать при регистрации.
func SelfAssignable(role models.Role) bool {
	return IsValid(role) && role != models.RoleAdmin
}

// CanPostListings reports whether role may own property listings.
func CanPostListings(role models.Role) bool {
	switch role {
	case models.RoleSeller, models.RoleAgent, models.RoleCompanyAdmin, models.RoleAdmin:
		return true
	}
	return false
}
