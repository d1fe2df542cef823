package account

import "errors"

var (
	// ErrValidation is wrapped by every rule violation returned from this package.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is wrapped by every KV store read or write failure.
	ErrPersistence = errors.New("persistence failure")
)

// Config is the persisted tunnel client configuration for one user.
// An empty AccountID or Token means the value has never been set.
type Config struct {
	// AccountID is the account slug appended to the auth base URL
	AccountID string `json:"accountId,omitempty"`

	// AuthBaseURL is the sign-in portal base URL
	AuthBaseURL string `json:"authBaseUrl"`

	// APIURL is the control plane URL the client connects to
	APIURL string `json:"apiUrl"`

	// LogFilter is the log directive string handed to the client's logger
	LogFilter string `json:"logFilter"`

	// Token is the session token obtained from the sign-in flow
	Token string `json:"token,omitempty"`
}

// Fields holds the four user-editable configuration fields.
type Fields struct {
	AccountID   string
	AuthBaseURL string
	APIURL      string
	LogFilter   string
}

// Fields returns the editable part of the configuration.
func (c Config) Fields() Fields {
	return Fields{
		AccountID:   c.AccountID,
		AuthBaseURL: c.AuthBaseURL,
		APIURL:      c.APIURL,
		LogFilter:   c.LogFilter,
	}
}
