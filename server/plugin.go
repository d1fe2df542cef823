package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
	"github.com/mattermost/mattermost-plugin-tunnel/server/bundle"
	"github.com/mattermost/mattermost-plugin-tunnel/server/poster"
	"github.com/mattermost/mattermost-plugin-tunnel/server/settings"
)

// Websocket events published to the session owner.
const (
	eventSettingsAction = "settings_action"
	eventSettingsState  = "settings_state"
)

// Plugin implements the interface expected by the Mattermost server to communicate between the server and plugin processes.
type Plugin struct {
	plugin.MattermostPlugin

	// client is the Mattermost server API client.
	client *pluginapi.Client

	// logger is the client's LogService, replaceable in tests.
	logger settings.Logger

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active plugin configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// bundler is shared by all sessions so exports to the same directory are serialized.
	bundler *bundle.Bundler

	// sessions holds each user's open settings session.
	sessions *settings.Registry

	// poster delivers exported bundles to users.
	poster *poster.BundlePoster

	// httpTransport performs sign-in reachability checks. http.DefaultTransport when nil.
	httpTransport http.RoundTripper
}

// OnActivate is invoked when the plugin is activated. If an error is returned, the plugin will be deactivated.
func (p *Plugin) OnActivate() error {
	p.client = pluginapi.NewClient(p.API, p.Driver)
	p.logger = &p.client.Log

	config := p.getConfiguration()

	botUsername := config.botUsername()
	botID, err := p.API.EnsureBotUser(&model.Bot{
		Username:    botUsername,
		DisplayName: "Tunnel",
		Description: "Bot for delivering exported tunnel diagnostics",
	})
	if err != nil {
		return errors.Wrap(err, "failed to ensure bot user")
	}

	p.API.LogInfo("Bot user initialized", "botID", botID, "username", botUsername)

	p.bundler = bundle.NewBundler(p.logger)
	p.sessions = settings.NewRegistry(p.logger, settings.SessionTTL)
	p.poster = poster.New(p.API, botID)

	return nil
}

// OnDeactivate is invoked when the plugin is deactivated.
func (p *Plugin) OnDeactivate() error {
	if p.sessions != nil {
		p.sessions.CloseAll()
		p.sessions.Stop()
	}

	return nil
}

// accountStore returns the account configuration store for userID.
func (p *Plugin) accountStore(userID string) *account.KVStore {
	return account.NewKVStore(p.API, userID, p.getConfiguration().accountDefaults())
}

// openSession replaces the user's settings session with a fresh one whose
// actions and state are forwarded over the websocket, then starts loading.
func (p *Plugin) openSession(userID string) (*settings.Controller, error) {
	store := p.accountStore(userID)

	session := settings.NewController(settings.Options{
		Store:   store,
		Bundler: p.bundler,
		Consumer: settings.BundleConsumerFunc(func(ctx context.Context, path string) error {
			var accountID string
			if cfg, err := store.Get(); err == nil {
				accountID = cfg.AccountID
			}
			return p.poster.PostBundle(ctx, userID, accountID, path)
		}),
		Logger:         p.logger,
		DiagnosticsDir: p.getConfiguration().diagnosticsDirectory(),
	})

	// Attach before Open so the initial FillFields is not dropped.
	p.forwardSession(userID, session)

	if err := p.sessions.Open(userID, session); err != nil {
		session.Close()
		return nil, errors.Wrap(err, "failed to register settings session")
	}

	if err := session.Open(); err != nil {
		return nil, errors.Wrap(err, "failed to open settings session")
	}

	if err := session.Resume(); err != nil {
		return nil, errors.Wrap(err, "failed to measure diagnostics")
	}

	return session, nil
}

// forwardSession publishes the session's actions and state snapshots to the
// user until the session is closed. Websocket delivery is fire-and-forget, so
// an action is seen at most once.
func (p *Plugin) forwardSession(userID string, session *settings.Controller) {
	actions, _ := session.Actions()
	states, _ := session.Subscribe()
	broadcast := &model.WebsocketBroadcast{UserId: userID}

	go func() {
		for action := range actions {
			p.publish(eventSettingsAction, session.ID(), action, broadcast)
		}
	}()

	go func() {
		for state := range states {
			p.publish(eventSettingsState, session.ID(), state, broadcast)
		}
	}()
}

func (p *Plugin) publish(event, sessionID string, payload any, broadcast *model.WebsocketBroadcast) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to marshal websocket payload", "event", event, "error", err.Error())
		return
	}

	p.API.PublishWebSocketEvent(event, map[string]any{
		"session_id": sessionID,
		"data":       string(data),
	}, broadcast)
}
