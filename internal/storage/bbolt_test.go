package storage

import (
	"path/filepath"
	"testing"
	"time"

	"aulanet/internal/auth"
	"aulanet/internal/models"
)

func openTestStorage(t *testing.T) *BboltStorage {
	t.Helper()
	s, err := NewBboltStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCredentialsRoundtrip(t *testing.T) {
	s := openTestStorage(t)

	credentials := auth.UserCredentials{
		User: models.User{
			ID:          "u1",
			UserName:    "tmendoza",
			DisplayName: "T. Mendoza",
			Role:        models.RoleTeacher,
		},
		PasswordHash: "hash",
	}
	if err := s.UpsertCredentials(credentials); err != nil {
		t.Fatalf("UpsertCredentials failed: %v", err)
	}

	list, err := s.ListCredentials()
	if err != nil {
		t.Fatalf("ListCredentials failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 credentials record, got %d", len(list))
	}
	got := list[0]
	if got.UserName != "tmendoza" || got.Role != models.RoleTeacher || got.PasswordHash != "hash" {
		t.Errorf("unexpected credentials %+v", got)
	}

	user, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.DisplayName != "T. Mendoza" {
		t.Errorf("unexpected user %+v", user)
	}

	if _, err := s.GetUser("missing"); err != models.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetOnline(t *testing.T) {
	s := openTestStorage(t)

	if err := s.UpsertCredentials(auth.UserCredentials{User: models.User{ID: "u1", UserName: "gperez"}}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	connectTime := time.Unix(1700000000, 0)
	if err := s.SetOnline("u1", true, connectTime); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}

	online, err := s.IsOnline("u1")
	if err != nil || !online {
		t.Fatalf("expected online, got %v err=%v", online, err)
	}

	// Disconnect keeps the connect timestamp.
	disconnectTime := connectTime.Add(time.Hour)
	if err := s.SetOnline("u1", false, disconnectTime); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}

	user, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Presence.Online {
		t.Error("expected offline")
	}
	if user.Presence.LastConnection != connectTime.Unix() {
		t.Errorf("expected last connection %d, got %d", connectTime.Unix(), user.Presence.LastConnection)
	}

	if err := s.SetOnline("missing", true, connectTime); err != models.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResetOnline(t *testing.T) {
	s := openTestStorage(t)

	now := time.Now()
	for _, id := range []string{"u1", "u2"} {
		if err := s.UpsertCredentials(auth.UserCredentials{User: models.User{ID: id, UserName: id}}); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	if err := s.SetOnline("u1", true, now); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}

	if err := s.ResetOnline(); err != nil {
		t.Fatalf("ResetOnline failed: %v", err)
	}

	for _, id := range []string{"u1", "u2"} {
		online, err := s.IsOnline(id)
		if err != nil {
			t.Fatalf("IsOnline failed: %v", err)
		}
		if online {
			t.Errorf("expected %s offline after reset", id)
		}
	}

	// The sweep does not clobber last connection times.
	user, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Presence.LastConnection != now.Unix() {
		t.Errorf("reset changed last connection: %d", user.Presence.LastConnection)
	}
}

func TestMessages(t *testing.T) {
	s := openTestStorage(t)

	for _, content := range []string{"hola", "buenas", "adios"} {
		msg, err := s.AppendMessage(models.Message{
			Timestamp:    time.Now().Unix(),
			Conversation: "chat_1_2",
			UserID:       "1",
			Content:      content,
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if msg.Seq == 0 {
			t.Error("expected assigned sequence number")
		}
	}

	messages, err := s.ListMessages("chat_1_2")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"hola", "buenas", "adios"} {
		if messages[i].Content != want {
			t.Errorf("message %d: expected %q, got %q", i, want, messages[i].Content)
		}
		if messages[i].Seq != int64(i+1) {
			t.Errorf("message %d: expected seq %d, got %d", i, i+1, messages[i].Seq)
		}
	}

	empty, err := s.ListMessages("chat_9_9")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no messages, got %d", len(empty))
	}

	if _, err := s.AppendMessage(models.Message{Content: "no conversation"}); err == nil {
		t.Error("expected error for message without conversation")
	}
}

func TestTokens(t *testing.T) {
	s := openTestStorage(t)

	if err := s.UpsertToken("u1", "hash1"); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}
	if err := s.UpsertToken("u2", "hash2"); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}

	tokens, err := s.ListTokens()
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 2 || tokens["hash1"] != "u1" || tokens["hash2"] != "u2" {
		t.Errorf("unexpected tokens %v", tokens)
	}

	if err := s.DeleteToken("hash1"); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	tokens, err = s.ListTokens()
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 1 {
		t.Errorf("expected 1 token after delete, got %d", len(tokens))
	}
}

func TestFileMetadata(t *testing.T) {
	s := openTestStorage(t)

	meta := FileMetadata{
		ID:           "f1",
		Hash:         "abc",
		MimeType:     "image/png",
		Size:         42,
		CreatedAt:    time.Now().Unix(),
		UserID:       "u1",
		Conversation: "chat_1_2",
	}
	if err := s.UpsertFileMetadata(meta); err != nil {
		t.Fatalf("UpsertFileMetadata failed: %v", err)
	}

	got, err := s.GetFileMetadata("f1")
	if err != nil {
		t.Fatalf("GetFileMetadata failed: %v", err)
	}
	if got != meta {
		t.Errorf("expected %+v, got %+v", meta, got)
	}

	if _, err := s.GetFileMetadata("missing"); err == nil {
		t.Error("expected error for missing metadata")
	}
}
