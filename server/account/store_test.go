package account

import (
	"encoding/json"
	"testing"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testDefaults = Config{
	AuthBaseURL: "https://app.example.dev",
	APIURL:      "wss://api.example.dev",
	LogFilter:   "info",
}

func TestKVStore_Get(t *testing.T) {
	t.Run("returns defaults when nothing stored", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		api.On("KVGet", "account_user1_config").Return(nil, nil)

		cfg, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, testDefaults, cfg)
		api.AssertExpectations(t)
	})

	t.Run("returns stored record", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		stored := Config{AccountID: "acme", AuthBaseURL: "https://a.example", APIURL: "wss://b.example", LogFilter: "debug", Token: "tok"}
		data, _ := json.Marshal(stored)
		api.On("KVGet", "account_user1_config").Return(data, nil)

		cfg, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, stored, cfg)
	})

	t.Run("kv error is a persistence failure", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		api.On("KVGet", "account_user1_config").Return(nil, model.NewAppError("KVGet", "kv.error", nil, "boom", 500))

		_, err := store.Get()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPersistence)
	})

	t.Run("corrupt record is a persistence failure", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		api.On("KVGet", "account_user1_config").Return([]byte("invalid json"), nil)

		_, err := store.Get()
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Contains(t, err.Error(), "failed to unmarshal")
	})
}

func TestKVStore_Save(t *testing.T) {
	t.Run("keeps previously stored token", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		previous, _ := json.Marshal(Config{AccountID: "old", Token: "secret"})
		expected := Config{AccountID: "acme", AuthBaseURL: "https://a.example", APIURL: "wss://b.example", LogFilter: "debug", Token: "secret"}
		expectedData, _ := json.Marshal(expected)

		api.On("KVGet", "account_user1_config").Return(previous, nil).Once()
		api.On("KVSet", "account_user1_config", expectedData).Return(nil).Once()

		cfg, err := store.Save("acme", "https://a.example", "wss://b.example", "debug")
		require.NoError(t, err)
		assert.Equal(t, expected, cfg)
		api.AssertExpectations(t)
	})

	t.Run("second save replaces every editable field", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		first := Config{AccountID: "first", AuthBaseURL: "https://first.example", APIURL: "wss://first.example", LogFilter: "debug"}
		second := Config{AccountID: "second", AuthBaseURL: "https://second.example", APIURL: "", LogFilter: "warn"}
		firstData, _ := json.Marshal(first)
		secondData, _ := json.Marshal(second)

		var written [][]byte
		capture := func(args mock.Arguments) {
			written = append(written, args.Get(1).([]byte))
		}

		api.On("KVGet", "account_user1_config").Return(nil, nil).Once()
		api.On("KVSet", "account_user1_config", mock.Anything).Run(capture).Return(nil).Once()
		api.On("KVGet", "account_user1_config").Return(firstData, nil).Once()
		api.On("KVSet", "account_user1_config", mock.Anything).Run(capture).Return(nil).Once()
		api.On("KVGet", "account_user1_config").Return(secondData, nil).Once()

		_, err := store.Save(first.AccountID, first.AuthBaseURL, first.APIURL, first.LogFilter)
		require.NoError(t, err)
		_, err = store.Save(second.AccountID, second.AuthBaseURL, second.APIURL, second.LogFilter)
		require.NoError(t, err)

		require.Len(t, written, 2)
		assert.JSONEq(t, string(firstData), string(written[0]))
		assert.JSONEq(t, string(secondData), string(written[1]))

		cfg, err := store.Get()
		require.NoError(t, err)
		assert.Equal(t, second, cfg)
		api.AssertExpectations(t)
	})

	t.Run("write failure is a persistence failure", func(t *testing.T) {
		api := &plugintest.API{}
		store := NewKVStore(api, "user1", testDefaults)

		api.On("KVGet", "account_user1_config").Return(nil, nil)
		api.On("KVSet", "account_user1_config", mock.Anything).Return(model.NewAppError("KVSet", "kv.error", nil, "boom", 500))

		_, err := store.Save("acme", "https://a.example", "", "info")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Contains(t, err.Error(), "failed to save config")
	})
}

func TestKVStore_SaveToken(t *testing.T) {
	api := &plugintest.API{}
	store := NewKVStore(api, "user1", testDefaults)

	expected := testDefaults
	expected.Token = "tok"
	expectedData, _ := json.Marshal(expected)

	api.On("KVGet", "account_user1_config").Return(nil, nil)
	api.On("KVSet", "account_user1_config", expectedData).Return(nil)

	cfg, err := store.SaveToken("tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, testDefaults.AuthBaseURL, cfg.AuthBaseURL)
	api.AssertExpectations(t)
}

func TestKVStore_Clear(t *testing.T) {
	api := &plugintest.API{}
	store := NewKVStore(api, "user1", testDefaults)

	api.On("KVDelete", "account_user1_config").Return(nil)

	require.NoError(t, store.Clear())
	api.AssertExpectations(t)
}
