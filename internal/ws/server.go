package ws

import (
	"log"
	"net/http"
	"time"

	"aulanet/internal/group"
	"aulanet/internal/models"

	"github.com/gorilla/websocket"
)

// CloseAuthFailure is the close code sent when the handshake token is
// rejected, distinguishing it from a default closure.
const CloseAuthFailure = 4001

// Authenticator resolves a bearer token to a user ID.
type Authenticator interface {
	GetUserID(token string) (string, error)
}

// UserDirectory resolves a user ID to the full user record.
type UserDirectory interface {
	GetUser(id string) (models.User, error)
}

// Server terminates the two realtime endpoints: guardian-teacher chat
// conversations and classroom presence.
type Server struct {
	auth     Authenticator
	users    UserDirectory
	register PresenceRegister
	store    MessageStore
	groups   *group.Registry
	upgrader *websocket.Upgrader
}

func NewServer(auth Authenticator, users UserDirectory, register PresenceRegister, store MessageStore) *Server {
	return &Server{
		auth:     auth,
		users:    users,
		register: register,
		store:    store,
		groups:   group.NewRegistry(),
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

// Groups exposes the membership registry for the realtime endpoints.
func (s *Server) Groups() *group.Registry {
	return s.groups
}

// HandleChat serves GET /ws/chat/{user1}/{user2}?token=...
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	user1ID := r.PathValue("user1")
	user2ID := r.PathValue("user2")

	userID, authErr := s.auth.GetUserID(r.URL.Query().Get("token"))

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	if authErr != nil {
		reject(ws)
		return
	}

	conn := NewConnection(ws, userID)
	session := NewChatSession(conn, s.groups, s.store, user1ID, user2ID)
	if err := session.Run(r.Context()); err != nil {
		log.Printf("chat session ended: %v", err)
	}
}

// HandlePresence serves GET /ws/online/{classroom}?token=...
func (s *Server) HandlePresence(w http.ResponseWriter, r *http.Request) {
	classroomID := r.PathValue("classroom")

	var user models.User
	userID, authErr := s.auth.GetUserID(r.URL.Query().Get("token"))
	if authErr == nil {
		// A token for a user that no longer exists is the same
		// rejection as a bad token.
		user, authErr = s.users.GetUser(userID)
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading to websocket: %v", err)
		return
	}

	if authErr != nil {
		reject(ws)
		return
	}

	session := NewPresenceSession(NewConnection(ws, user.ID), s.groups, s.register, user, classroomID)
	if err := session.Run(r.Context()); err != nil {
		log.Printf("presence session ended: %v", err)
	}
}

// reject completes the websocket handshake and immediately closes with
// the authentication failure code, so clients can tell a rejected
// token from a dropped connection.
func reject(ws *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(CloseAuthFailure, "authentication rejected")
	_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = ws.Close()
}
