package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"aulanet/internal/api"
	"aulanet/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(apiHandlers *api.API, wsServer *ws.Server, addr string) *APIServer {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("POST /api/login", apiHandlers.LoginHandler)
	mux.HandleFunc("POST /api/logoff", apiHandlers.LogoffHandler)
	mux.HandleFunc("GET /api/me", apiHandlers.MeHandler)
	mux.HandleFunc("GET /api/conversations/{user1}/{user2}/messages", apiHandlers.MessagesHandler)
	mux.HandleFunc("POST /api/upload/image", apiHandlers.UploadImageHandler)
	mux.HandleFunc("GET /api/images/{id}", apiHandlers.GetImageHandler)

	// Realtime endpoints
	mux.HandleFunc("GET /ws/chat/{user1}/{user2}", wsServer.HandleChat)
	mux.HandleFunc("GET /ws/online/{classroom}", wsServer.HandlePresence)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
