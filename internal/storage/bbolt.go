package storage

import (
	"fmt"
	"time"

	"aulanet/internal/auth"
	"aulanet/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers    = []byte("users")
	bucketTokens   = []byte("tokens")
	bucketMessages = []byte("messages")
	bucketFiles    = []byte("files")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketUsers, bucketTokens, bucketMessages, bucketFiles} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// UpsertCredentials stores new or updated user credentials.
func (s *BboltStorage) UpsertCredentials(credentials auth.UserCredentials) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		dbUser := &DBUser{
			ID:             credentials.ID,
			UserName:       credentials.UserName,
			DisplayName:    credentials.DisplayName,
			Role:           string(credentials.Role),
			IsOnline:       credentials.Presence.Online,
			LastConnection: credentials.Presence.LastConnection,
			PasswordHash:   credentials.PasswordHash,
		}

		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), data)
	})
}

// ListCredentials returns all user credentials stored in the database.
func (s *BboltStorage) ListCredentials() ([]auth.UserCredentials, error) {
	var credentials []auth.UserCredentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			credentials = append(credentials, auth.UserCredentials{
				User:         userFromDB(dbUser),
				PasswordHash: dbUser.PasswordHash,
			})
			return nil
		})
	})
	return credentials, err
}

// GetUser returns a single user by ID.
func (s *BboltStorage) GetUser(id string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}
		user = userFromDB(dbUser)
		return nil
	})
	return user, err
}

// SetOnline updates a user's online status inside a single write
// transaction. LastConnection is only advanced when the user comes
// online; going offline leaves it at the connect time.
func (s *BboltStorage) SetOnline(userID string, online bool, ts time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		data := b.Get([]byte(userID))
		if data == nil {
			return models.ErrNotFound
		}

		var dbUser DBUser
		if err := dbUser.UnmarshalBinary(data); err != nil {
			return err
		}

		dbUser.IsOnline = online
		if online {
			dbUser.LastConnection = ts.Unix()
		}

		updated, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbUser.Key(), updated)
	})
}

// IsOnline reports whether the user is currently marked online.
func (s *BboltStorage) IsOnline(userID string) (bool, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return false, err
	}
	return user.Presence.Online, nil
}

// ResetOnline marks every user offline. Called at startup to clear
// rows left online by an unclean shutdown.
func (s *BboltStorage) ResetOnline() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		return b.ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			if !dbUser.IsOnline {
				return nil
			}
			dbUser.IsOnline = false
			updated, err := dbUser.MarshalBinary()
			if err != nil {
				return err
			}
			return b.Put(k, updated)
		})
	})
}

// AppendMessage persists a chat message into its conversation's bucket,
// assigning the next sequence number. Returns the stored message.
func (s *BboltStorage) AppendMessage(message models.Message) (models.Message, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if message.Conversation == "" {
			return fmt.Errorf("message missing conversation key")
		}

		convBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(message.Conversation))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		seq, err := convBucket.NextSequence()
		if err != nil {
			return err
		}
		message.Seq = int64(seq)

		dbMessage := DBMessage{
			Seq:          message.Seq,
			Timestamp:    message.Timestamp,
			Conversation: message.Conversation,
			UserID:       message.UserID,
			Content:      message.Content,
			ImageID:      message.ImageID,
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return convBucket.Put(dbMessage.Key(), data)
	})
	return message, err
}

// ListMessages returns a conversation's messages in sequence order.
func (s *BboltStorage) ListMessages(conversation string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		convBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversation))
		if convBucket == nil {
			return nil // no messages yet
		}

		return convBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				Seq:          dbMsg.Seq,
				Timestamp:    dbMsg.Timestamp,
				Conversation: dbMsg.Conversation,
				UserID:       dbMsg.UserID,
				Content:      dbMsg.Content,
				ImageID:      dbMsg.ImageID,
			})
			return nil
		})
	})
	return messages, err
}

func (s *BboltStorage) UpsertToken(userID string, tokenHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		dbToken := &DBToken{
			UserID: userID,
			Token:  tokenHash,
		}
		data, err := dbToken.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbToken.Key(), data)
	})
}

func (s *BboltStorage) DeleteToken(tokenHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).Delete([]byte(tokenHash))
	})
}

// ListTokens returns all persisted tokens as a tokenHash -> userID map.
func (s *BboltStorage) ListTokens() (map[string]string, error) {
	tokens := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		return b.ForEach(func(k, v []byte) error {
			var dbToken DBToken
			if err := dbToken.UnmarshalBinary(v); err != nil {
				return err
			}
			tokens[dbToken.Token] = dbToken.UserID
			return nil
		})
	})
	return tokens, err
}

func userFromDB(dbUser DBUser) models.User {
	return models.User{
		ID:          dbUser.ID,
		UserName:    dbUser.UserName,
		DisplayName: dbUser.DisplayName,
		Role:        models.Role(dbUser.Role),
		Presence: models.Presence{
			Online:         dbUser.IsOnline,
			LastConnection: dbUser.LastConnection,
		},
	}
}
