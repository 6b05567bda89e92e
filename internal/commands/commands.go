package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"aulanet/internal/auth"
	"aulanet/internal/config"
	"aulanet/internal/content"
	"aulanet/internal/models"
	"aulanet/internal/roster"
	"aulanet/internal/storage"
)

const passwordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generatePassword returns a random initial password for a new user.
func generatePassword(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	for i := range b {
		b[i] = passwordChars[int(b[i])%len(passwordChars)]
	}
	return string(b), nil
}

// AddUser creates a user with a generated password and prints the
// credentials for the administrator to hand over.
func AddUser(ctx context.Context, cfg *config.Config, username, displayName string, role models.Role) error {
	if err := content.ValidateUsername(username); err != nil {
		return err
	}
	if err := content.ValidateRole(role); err != nil {
		return err
	}
	if displayName == "" {
		displayName = username
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	authService, err := auth.NewAuthService(ctx, auth.Config{
		Secret:      base64.StdEncoding.EncodeToString([]byte(cfg.AuthSecret)),
		TokenExpiry: cfg.TokenExpiry,
	}, store)
	if err != nil {
		return err
	}

	password, err := generatePassword(12)
	if err != nil {
		return err
	}

	credentials, err := authService.AddUser(models.User{
		UserName:    username,
		DisplayName: content.Sanitize(displayName),
		Role:        role,
	}, password)
	if err != nil {
		return err
	}

	fmt.Printf("\nUser Created Successfully!\n")
	fmt.Printf("ID:       %s\n", credentials.ID)
	fmt.Printf("Username: %s\n", credentials.UserName)
	fmt.Printf("Role:     %s\n", credentials.Role)
	fmt.Printf("Password: %s\n\n", password)
	fmt.Println("Please share the password with the user over a trusted channel.")
	return nil
}

// AddClassroom registers a classroom in the roster.
func AddClassroom(cfg *config.Config, id, name string) error {
	db, err := roster.New(cfg.RosterDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if name == "" {
		name = id
	}
	if err := db.AddClassroom(id, name); err != nil {
		return err
	}
	fmt.Printf("Classroom %s (%s) registered.\n", id, name)
	return nil
}

// AssignTeacher records a teacher's classroom and subject assignment.
func AssignTeacher(cfg *config.Config, userID, classroomID, subject string) error {
	if classroomID == "" {
		return fmt.Errorf("-classroom is required")
	}
	if subject == "" {
		return fmt.Errorf("-subject is required")
	}

	db, err := roster.New(cfg.RosterDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.AssignTeacher(userID, classroomID, subject); err != nil {
		return err
	}
	fmt.Printf("Teacher %s assigned to classroom %s for %s.\n", userID, classroomID, subject)
	return nil
}

// EnrollStudent records a student in a classroom linked to a guardian.
func EnrollStudent(cfg *config.Config, studentID, name, classroomID, guardianID string) error {
	if classroomID == "" {
		return fmt.Errorf("-classroom is required")
	}
	if guardianID == "" {
		return fmt.Errorf("-guardian is required")
	}
	if name == "" {
		name = studentID
	}

	db, err := roster.New(cfg.RosterDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.EnrollStudent(studentID, content.Sanitize(name), classroomID, guardianID); err != nil {
		return err
	}
	fmt.Printf("Student %s enrolled in classroom %s with guardian %s.\n", studentID, classroomID, guardianID)
	return nil
}
