// Package prefs persists client-side preferences, currently just the
// user's LAN server override, across runs.
package prefs

import (
	"fmt"
	"time"

	"chatbox/internal/models"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	bucketPrefs = []byte("prefs")

	keyLanBaseURL = []byte("lanBaseUrl")
)

type lanOverride struct {
	URL     string `msgpack:"url"`
	SavedAt int64  `msgpack:"savedAt"`
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open prefs db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPrefs)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create prefs bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LanBaseURL returns the persisted LAN override, or models.ErrNotFound
// when the user never set one.
func (s *Store) LanBaseURL() (string, error) {
	var rec lanOverride
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPrefs).Get(keyLanBaseURL)
		if data == nil {
			return models.ErrNotFound
		}
		return msgpack.Unmarshal(data, &rec)
	})
	if err != nil {
		return "", err
	}
	return rec.URL, nil
}

// SetLanBaseURL persists url as the LAN candidate for future
// negotiations. An empty url clears the override.
func (s *Store) SetLanBaseURL(url string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPrefs)
		if url == "" {
			return b.Delete(keyLanBaseURL)
		}
		data, err := msgpack.Marshal(lanOverride{
			URL:     url,
			SavedAt: time.Now().UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("failed to encode lan override: %w", err)
		}
		return b.Put(keyLanBaseURL, data)
	})
}
