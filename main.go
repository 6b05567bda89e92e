package main

import (
	"aulanet/internal/api"
	"aulanet/internal/auth"
	"aulanet/internal/commands"
	"aulanet/internal/config"
	"aulanet/internal/filestore"
	"aulanet/internal/http"
	"aulanet/internal/models"
	"aulanet/internal/presence"
	"aulanet/internal/roster"
	"aulanet/internal/storage"
	"aulanet/internal/ws"
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aulanet", flag.ContinueOnError)
	addUser := fs.String("add-user", "", "Username to create (creates user with random password and prints details)")
	role := fs.String("role", "guardian", "Role for -add-user: admin, teacher or guardian")
	displayName := fs.String("display-name", "", "Display name for -add-user (defaults to the username)")
	addClassroom := fs.String("add-classroom", "", "Classroom ID to register")
	className := fs.String("class-name", "", "Classroom name for -add-classroom")
	assignTeacher := fs.String("assign-teacher", "", "Teacher user ID to assign to a classroom (requires -classroom and -subject)")
	enrollStudent := fs.String("enroll-student", "", "Student ID to enroll (requires -classroom and -guardian)")
	studentName := fs.String("student-name", "", "Student name for -enroll-student")
	classroom := fs.String("classroom", "", "Classroom ID for -assign-teacher and -enroll-student")
	subject := fs.String("subject", "", "Subject for -assign-teacher")
	guardian := fs.String("guardian", "", "Guardian user ID for -enroll-student")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Roster commands don't touch the auth secret, so they can run
	// without AUTH_SECRET set.
	rosterCmd := *addClassroom != "" || *assignTeacher != "" || *enrollStudent != ""

	cfg, err := config.Load(rosterCmd)
	if err != nil {
		return err
	}

	switch {
	case *addUser != "":
		return commands.AddUser(ctx, cfg, *addUser, *displayName, models.Role(*role))
	case *addClassroom != "":
		return commands.AddClassroom(cfg, *addClassroom, *className)
	case *assignTeacher != "":
		return commands.AssignTeacher(cfg, *assignTeacher, *classroom, *subject)
	case *enrollStudent != "":
		return commands.EnrollStudent(cfg, *enrollStudent, *studentName, *classroom, *guardian)
	}

	authConfig := auth.Config{
		Secret:      base64.StdEncoding.EncodeToString([]byte(cfg.AuthSecret)),
		TokenExpiry: cfg.TokenExpiry,
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	rosterDB, err := roster.New(cfg.RosterDB)
	if err != nil {
		return err
	}
	defer func() { _ = rosterDB.Close() }()

	authService, err := auth.NewAuthService(ctx, authConfig, bbStorage)
	if err != nil {
		return err
	}

	register := presence.NewRegister(bbStorage, rosterDB)

	// Connections did not survive the last shutdown, so neither did
	// anyone's online status.
	if err := register.ResetAll(); err != nil {
		return err
	}

	files, err := filestore.NewLocalFileStore(cfg.UploadsPath)
	if err != nil {
		return err
	}

	wsServer := ws.NewServer(authService, bbStorage, register, bbStorage)
	apiHandlers := api.New(authService, bbStorage, files)
	apiServer := http.NewAPIServer(apiHandlers, wsServer, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
