package main

import (
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
)

const (
	pluginID = "com.mattermost.plugin-tunnel"

	defaultBotUsername = "tunnel"
	defaultLogFilter   = "info"
)

// defaultDiagnosticsDirectory is relative to the server's working directory.
var defaultDiagnosticsDirectory = filepath.Join(".", "plugins", pluginID, "log")

// configuration captures the plugin's external configuration as exposed in the Mattermost server
// configuration, as well as values computed from the configuration. Any public fields will be
// deserialized from the Mattermost server configuration in OnConfigurationChange.
//
// As plugins are inherently concurrent (hooks being called asynchronously), and the plugin
// configuration can change at any time, access to the configuration must be synchronized. The
// strategy used in this plugin is to guard a pointer to the configuration, and clone the entire
// struct whenever it changes.
//
// If you add non-reference types to your configuration struct, be sure to rewrite Clone as a deep
// copy appropriate for your types.
type configuration struct {
	// DiagnosticsDirectory is the log directory measured and exported by settings sessions.
	DiagnosticsDirectory string `json:"diagnosticsdirectory"`

	// DefaultAuthBaseURL, DefaultAPIURL and DefaultLogFilter seed the account
	// configuration of users who never saved one.
	DefaultAuthBaseURL string `json:"defaultauthbaseurl"`
	DefaultAPIURL      string `json:"defaultapiurl"`
	DefaultLogFilter   string `json:"defaultlogfilter"`

	// BotUsername is the bot that delivers exported bundles.
	BotUsername string `json:"botusername"`
}

// Clone shallow copies the configuration. Your implementation may require a deep copy if
// your configuration has reference types.
func (c *configuration) Clone() *configuration {
	clone := *c
	return &clone
}

// IsValid checks the account defaults with the same rules applied to user input.
// Empty values are allowed and mean "no default".
func (c *configuration) IsValid() error {
	if c.DefaultAuthBaseURL != "" {
		if err := account.ValidateAuthBaseURL(c.DefaultAuthBaseURL); err != nil {
			return errors.Wrap(err, "invalid default auth base url")
		}
	}

	if err := account.ValidateAPIURL(c.DefaultAPIURL); err != nil {
		return errors.Wrap(err, "invalid default api url")
	}

	if strings.ContainsRune(c.BotUsername, ' ') {
		return errors.Wrap(account.ErrValidation, "bot username must not contain spaces")
	}

	return nil
}

func (c *configuration) diagnosticsDirectory() string {
	if strings.TrimSpace(c.DiagnosticsDirectory) == "" {
		return defaultDiagnosticsDirectory
	}
	return c.DiagnosticsDirectory
}

func (c *configuration) botUsername() string {
	if c.BotUsername == "" {
		return defaultBotUsername
	}
	return c.BotUsername
}

// accountDefaults is what a user's account store returns before the first save.
func (c *configuration) accountDefaults() account.Config {
	logFilter := c.DefaultLogFilter
	if strings.TrimSpace(logFilter) == "" {
		logFilter = defaultLogFilter
	}

	return account.Config{
		AuthBaseURL: c.DefaultAuthBaseURL,
		APIURL:      c.DefaultAPIURL,
		LogFilter:   logFilter,
	}
}

// getConfiguration retrieves the active configuration under lock, making it safe to use
// concurrently. The active configuration may change underneath the client of this method, but
// the struct returned by this API call is considered immutable.
func (p *Plugin) getConfiguration() *configuration {
	p.configurationLock.RLock()
	defer p.configurationLock.RUnlock()

	if p.configuration == nil {
		return &configuration{}
	}

	return p.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// Do not call setConfiguration while holding the configurationLock, as sync.Mutex is not
// reentrant. In particular, avoid using the plugin API entirely, as this may in turn trigger a
// hook back into the plugin. If that hook attempts to acquire this lock, a deadlock may occur.
//
// This method panics if setConfiguration is called with the existing configuration. This almost
// certainly means that the configuration was modified without being cloned and may result in
// an unsafe access.
func (p *Plugin) setConfiguration(configuration *configuration) {
	p.configurationLock.Lock()
	defer p.configurationLock.Unlock()

	if configuration != nil && p.configuration == configuration {
		// Ignore assignment if the configuration struct is empty. Go will optimize the
		// allocation for same to point at the same memory address, breaking the check
		// above.
		if reflect.ValueOf(*configuration).NumField() == 0 {
			return
		}

		panic("setConfiguration called with the existing configuration")
	}

	p.configuration = configuration
}

// OnConfigurationChange is invoked when configuration changes may have been made.
// Open settings sessions keep the diagnostics directory they were created with.
func (p *Plugin) OnConfigurationChange() error {
	var newConfig = new(configuration)

	// Load the public configuration fields from the Mattermost server configuration.
	if err := p.API.LoadPluginConfiguration(newConfig); err != nil {
		return errors.Wrap(err, "failed to load plugin configuration")
	}

	if err := newConfig.IsValid(); err != nil {
		return errors.Wrap(err, "invalid plugin configuration")
	}

	p.setConfiguration(newConfig)

	return nil
}
