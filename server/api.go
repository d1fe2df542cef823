package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/pkg/errors"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
	"github.com/mattermost/mattermost-plugin-tunnel/server/bundle"
	"github.com/mattermost/mattermost-plugin-tunnel/server/endpoint"
	"github.com/mattermost/mattermost-plugin-tunnel/server/settings"
)

// signInCheckTimeout bounds the reachability probe of the resolved sign-in URL.
const signInCheckTimeout = 10 * time.Second

var errNoSession = errors.New("no settings session")

// sessionResponse describes a user's settings session.
type sessionResponse struct {
	SessionID string           `json:"sessionId"`
	Phase     string           `json:"phase"`
	Draft     settings.Draft   `json:"draft"`
	State     settings.UiState `json:"state"`
}

// draftPatch carries the draft fields to change. Absent fields are left alone.
type draftPatch struct {
	AccountID   *string `json:"accountId"`
	AuthBaseURL *string `json:"authBaseUrl"`
	APIURL      *string `json:"apiUrl"`
	LogFilter   *string `json:"logFilter"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type signInCheckResponse struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ServeHTTP handles HTTP requests for the plugin.
// The root URL is currently <siteUrl>/plugins/com.mattermost.plugin-tunnel/api/v1/.
func (p *Plugin) ServeHTTP(c *plugin.Context, w http.ResponseWriter, r *http.Request) {
	p.router().ServeHTTP(w, r)
}

func (p *Plugin) router() *mux.Router {
	router := mux.NewRouter()

	// Middleware to require that the user is logged in
	router.Use(p.MattermostAuthorizationRequired)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	apiRouter.HandleFunc("/settings", p.handleOpenSettings).Methods(http.MethodPost)
	apiRouter.HandleFunc("/settings", p.handleGetSettings).Methods(http.MethodGet)
	apiRouter.HandleFunc("/settings", p.handleCloseSettings).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/settings/draft", p.handleUpdateDraft).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/settings/save", p.withSession(func(s *settings.Controller) error { return s.Save() })).Methods(http.MethodPost)
	apiRouter.HandleFunc("/settings/cancel", p.withSession(func(s *settings.Controller) error { return s.Cancel() })).Methods(http.MethodPost)
	apiRouter.HandleFunc("/settings/resume", p.withSession(func(s *settings.Controller) error { return s.Resume() })).Methods(http.MethodPost)
	apiRouter.HandleFunc("/settings/export", p.withSession(func(s *settings.Controller) error { return s.ExportLogs() })).Methods(http.MethodPost)

	apiRouter.HandleFunc("/signin", p.handleSignIn).Methods(http.MethodGet)
	apiRouter.HandleFunc("/signin/check", p.handleSignInCheck).Methods(http.MethodGet)
	apiRouter.HandleFunc("/token", p.handleSaveToken).Methods(http.MethodPost)

	return router
}

func (p *Plugin) MattermostAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("Mattermost-User-ID")
		if userID == "" {
			http.Error(w, "Not authorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func userIDFrom(r *http.Request) string {
	return r.Header.Get("Mattermost-User-ID")
}

func (p *Plugin) handleOpenSettings(w http.ResponseWriter, r *http.Request) {
	session, err := p.openSession(userIDFrom(r))
	if err != nil {
		p.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, describeSession(session))
}

func (p *Plugin) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	session := p.sessions.Get(userIDFrom(r))
	if session == nil {
		p.writeError(w, errNoSession)
		return
	}

	writeJSON(w, http.StatusOK, describeSession(session))
}

func (p *Plugin) handleCloseSettings(w http.ResponseWriter, r *http.Request) {
	if err := p.sessions.Close(userIDFrom(r)); err != nil {
		p.writeError(w, errors.Wrap(errNoSession, err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (p *Plugin) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	session := p.sessions.Get(userIDFrom(r))
	if session == nil {
		p.writeError(w, errNoSession)
		return
	}

	var patch draftPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, err := session.Update(func(d settings.Draft) settings.Draft {
		if patch.AccountID != nil {
			d = d.WithAccountID(*patch.AccountID)
		}
		if patch.AuthBaseURL != nil {
			d = d.WithAuthBaseURL(*patch.AuthBaseURL)
		}
		if patch.APIURL != nil {
			d = d.WithAPIURL(*patch.APIURL)
		}
		if patch.LogFilter != nil {
			d = d.WithLogFilter(*patch.LogFilter)
		}
		return d
	})
	if err != nil {
		p.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// withSession runs command against the user's session. Results arrive over the
// websocket, so a started command answers 202.
func (p *Plugin) withSession(command func(*settings.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := p.sessions.Get(userIDFrom(r))
		if session == nil {
			p.writeError(w, errNoSession)
			return
		}

		if err := command(session); err != nil {
			p.writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

// handleSignIn redirects the browser to the account's sign-in page.
func (p *Plugin) handleSignIn(w http.ResponseWriter, r *http.Request) {
	cfg, err := p.accountStore(userIDFrom(r)).Get()
	if err != nil {
		p.writeError(w, err)
		return
	}

	target, err := endpoint.Resolve(cfg.AuthBaseURL, cfg.AccountID)
	if err != nil {
		p.writeError(w, err)
		return
	}

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// handleSignInCheck probes the account's sign-in page through the rewriting
// transport and reports whether it answered.
func (p *Plugin) handleSignInCheck(w http.ResponseWriter, r *http.Request) {
	store := p.accountStore(userIDFrom(r))

	cfg, err := store.Get()
	if err != nil {
		p.writeError(w, err)
		return
	}

	target, err := endpoint.Resolve(cfg.AuthBaseURL, cfg.AccountID)
	if err != nil {
		p.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), signInCheckTimeout)
	defer cancel()

	// The transport replaces the URL, so any placeholder target works here.
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		p.writeError(w, err)
		return
	}

	client := &http.Client{
		Transport: endpoint.NewTransport(p.httpTransport, store),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	result := signInCheckResponse{URL: target.String()}

	resp, err := client.Do(req)
	if err != nil {
		p.logger.Debug("Sign-in page unreachable", "url", target.String(), "error", err.Error())
		result.Error = err.Error()
		writeJSON(w, http.StatusOK, result)
		return
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Reachable = resp.StatusCode < http.StatusInternalServerError
	writeJSON(w, http.StatusOK, result)
}

func (p *Plugin) handleSaveToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := p.accountStore(userIDFrom(r)).SaveToken(req.Token); err != nil {
		p.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func describeSession(session *settings.Controller) sessionResponse {
	return sessionResponse{
		SessionID: session.ID(),
		Phase:     session.Phase().String(),
		Draft:     session.Draft(),
		State:     session.State(),
	}
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, account.ErrValidation), errors.Is(err, endpoint.ErrInvalidEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, settings.ErrBusy), errors.Is(err, bundle.ErrBundlingInProgress):
		return http.StatusConflict
	case errors.Is(err, errNoSession), errors.Is(err, settings.ErrClosed):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (p *Plugin) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		p.logger.Error("Request failed", "error", err.Error())
	}

	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
