package account

import (
	"encoding/json"
	"fmt"

	"github.com/mattermost/mattermost/server/public/plugin"
)

// KVStore persists a single user's Config in the Mattermost KV store.
// The whole record lives under one key so every write replaces it atomically.
type KVStore struct {
	api      plugin.API
	userID   string
	defaults Config
}

// NewKVStore creates a store for userID. defaults is returned by Get until the
// first Save.
func NewKVStore(api plugin.API, userID string, defaults Config) *KVStore {
	return &KVStore{
		api:      api,
		userID:   userID,
		defaults: defaults,
	}
}

func (s *KVStore) key() string {
	return fmt.Sprintf("account_%s_config", s.userID)
}

// Get returns the stored configuration, or the defaults if nothing was saved yet.
func (s *KVStore) Get() (Config, error) {
	data, appErr := s.api.KVGet(s.key())
	if appErr != nil {
		return Config{}, fmt.Errorf("%w: failed to get config: %v", ErrPersistence, appErr)
	}

	if data == nil {
		return s.defaults, nil
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to unmarshal config: %v", ErrPersistence, err)
	}

	return cfg, nil
}

// Save replaces the editable fields, keeps any previously stored token and
// returns the record as written.
func (s *KVStore) Save(accountID, authBaseURL, apiURL, logFilter string) (Config, error) {
	previous, err := s.Get()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AccountID:   accountID,
		AuthBaseURL: authBaseURL,
		APIURL:      apiURL,
		LogFilter:   logFilter,
		Token:       previous.Token,
	}

	if err := s.put(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SaveToken stores the session token without touching the editable fields.
func (s *KVStore) SaveToken(token string) (Config, error) {
	cfg, err := s.Get()
	if err != nil {
		return Config{}, err
	}

	cfg.Token = token
	if err := s.put(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Clear removes the stored record so the next Get returns the defaults.
func (s *KVStore) Clear() error {
	if appErr := s.api.KVDelete(s.key()); appErr != nil {
		return fmt.Errorf("%w: failed to delete config: %v", ErrPersistence, appErr)
	}
	return nil
}

func (s *KVStore) put(cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal config: %v", ErrPersistence, err)
	}

	if appErr := s.api.KVSet(s.key(), data); appErr != nil {
		return fmt.Errorf("%w: failed to save config: %v", ErrPersistence, appErr)
	}

	return nil
}
