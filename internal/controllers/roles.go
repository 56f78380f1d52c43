package controllers

var allowedRoles = map[string]struct{}{
	"admin":   {},
	"proctor": {},
}

func IsValidRole(role string) bool {
	_, ok := allowedRoles[role]
	return ok
}
