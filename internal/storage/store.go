package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"ride-hail-client/internal/common/logger"
	"ride-hail-client/pkg/uuid"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the device-local credential store: who is logged in, and the
// stable device identifier. One row per key.
type Store struct {
	db *sql.DB
}

type UserInfo struct {
	Phone string
	Name  string
	Role  string
	Token string
}

const (
	keyPhone    = "user.phone"
	keyName     = "user.name"
	keyRole     = "user.role"
	keyToken    = "user.token"
	keyDeviceID = "device.id"
)

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logger.Error("storage_open_failed", "Failed to open local store", "", "", err.Error())
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if err := db.Ping(); err != nil {
		logger.Error("storage_ping_failed", "Local store ping failed", "", "", err.Error())
		db.Close()
		return nil, fmt.Errorf("local store ping failed: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials table: %w", err)
	}

	logger.Info("storage_opened", "Local store opened", "", "")
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		logger.Info("storage_closed", "Local store closed", "", "")
	}
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO credentials(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetUserInfo() (*UserInfo, error) {
	phone, err := s.get(keyPhone)
	if err != nil {
		return nil, err
	}
	name, err := s.get(keyName)
	if err != nil {
		return nil, err
	}
	role, err := s.get(keyRole)
	if err != nil {
		return nil, err
	}
	token, err := s.get(keyToken)
	if err != nil {
		return nil, err
	}
	return &UserInfo{Phone: phone, Name: name, Role: role, Token: token}, nil
}

func (s *Store) SaveUserInfo(info UserInfo) error {
	if err := s.set(keyPhone, info.Phone); err != nil {
		return err
	}
	if err := s.set(keyName, info.Name); err != nil {
		return err
	}
	if err := s.set(keyRole, info.Role); err != nil {
		return err
	}
	return s.set(keyToken, info.Token)
}

// GetOrCreateDeviceID returns the stable per-install identifier,
// generating and persisting one on first call.
func (s *Store) GetOrCreateDeviceID() (string, error) {
	id, err := s.get(keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id, err = uuid.NewDeviceID()
	if err != nil {
		return "", fmt.Errorf("failed to generate device id: %w", err)
	}
	if err := s.set(keyDeviceID, id); err != nil {
		return "", err
	}
	logger.Info("device_id_created", "Generated new device id", "", "")
	return id, nil
}

// Clear wipes user credentials on logout. The device id survives.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE key != ?`, keyDeviceID)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	logger.Info("storage_cleared", "User credentials cleared", "", "")
	return nil
}
