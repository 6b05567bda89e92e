package content

import (
	"errors"
	"fmt"
	"regexp"

	"aulanet/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy        = bluemonday.StrictPolicy()
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Sanitize strips all HTML from the input string. It is applied to
// user-provided profile fields like display names before they are
// stored.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// ValidateUsername checks if the username contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}

// ValidateRole checks that the role is one of the three known roles.
func ValidateRole(role models.Role) error {
	switch role {
	case models.RoleAdmin, models.RoleTeacher, models.RoleGuardian:
		return nil
	}
	return fmt.Errorf("unknown role %q (allowed: admin, teacher, guardian)", role)
}
