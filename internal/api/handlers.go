package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"aulanet/internal/auth"
	"aulanet/internal/filestore"
	"aulanet/internal/group"
	"aulanet/internal/models"
	"aulanet/internal/storage"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// Message images are small photos from phones; cap uploads well above
// that.
const maxImageSize = 10 << 20

type API struct {
	auth    *auth.AuthService
	storage *storage.BboltStorage
	files   filestore.FileStore
}

func New(auth *auth.AuthService, storage *storage.BboltStorage, files filestore.FileStore) *API {
	return &API{auth: auth, storage: storage, files: files}
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// Support both JSON and Form (since frontend uses x-www-form-urlencoded)
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	loginResp, _ := a.auth.Login(auth.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	})

	if !loginResp.Success {
		w.WriteHeader(http.StatusUnauthorized)
		if err := json.NewEncoder(w).Encode(loginResp); err != nil {
			log.Printf("failed to encode login response: %v", err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    loginResp.Token,
		HttpOnly: true,
		Path:     "/",
		Expires:  time.Unix(loginResp.TokenExpiry, 0),
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(loginResp); err != nil {
		log.Printf("failed to encode login response: %v", err)
	}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	return token
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	token := a.getToken(r)
	if token != "" {
		_ = a.auth.Logoff(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusOK)
}

func (a *API) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := a.auth.GetUserID(a.getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := a.storage.GetUser(userID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(user); err != nil {
		log.Printf("failed to encode me response: %v", err)
	}
}

// MessagesHandler returns the stored history of a conversation. Either
// participant order in the path reaches the same conversation.
func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := a.auth.GetUserID(a.getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user1ID := r.PathValue("user1")
	user2ID := r.PathValue("user2")
	if userID != user1ID && userID != user2ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	messages, err := a.storage.ListMessages(group.ConversationKey(user1ID, user2ID))
	if err != nil {
		log.Printf("failed to list messages: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(messages); err != nil {
		log.Printf("failed to encode messages response: %v", err)
	}
}

// UploadImageHandler accepts a multipart image for a conversation
// message and stores it content-addressed.
func (a *API) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := a.auth.GetUserID(a.getToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Missing image field", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	if len(data) > maxImageSize {
		http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
		return
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown || !filetype.IsImage(data) {
		http.Error(w, "Unsupported file type", http.StatusUnsupportedMediaType)
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if err := a.files.Save(bytes.NewReader(data), hash); err != nil {
		log.Printf("failed to save image: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	meta := storage.FileMetadata{
		ID:           uuid.NewString(),
		Hash:         hash,
		MimeType:     kind.MIME.Value,
		Size:         int64(len(data)),
		CreatedAt:    time.Now().Unix(),
		UserID:       userID,
		Conversation: r.FormValue("conversation"),
	}
	if err := a.storage.UpsertFileMetadata(meta); err != nil {
		log.Printf("failed to save image metadata: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	log.Printf("image uploaded: id=%s name=%s size=%d", meta.ID, header.Filename, meta.Size)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"fileId": meta.ID}); err != nil {
		log.Printf("failed to encode upload response: %v", err)
	}
}

func (a *API) GetImageHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := a.auth.GetUserID(a.getToken(r)); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	meta, err := a.storage.GetFileMetadata(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	content, err := a.files.Get(meta.Hash)
	if err != nil {
		log.Printf("failed to open image %s: %v", meta.ID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = content.Close() }()

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", meta.Size))
	if _, err := io.Copy(w, content); err != nil {
		log.Printf("failed to send image %s: %v", meta.ID, err)
	}
}
