package settings

import (
	"errors"

	"github.com/mattermost/mattermost-plugin-tunnel/server/account"
)

var (
	// ErrBusy is returned when a command is not valid in the session's current phase.
	ErrBusy = errors.New("settings session is busy")

	// ErrClosed is returned by every command after the session was closed.
	ErrClosed = errors.New("settings session is closed")
)

// Phase is the controller's position in its state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseEditing
	PhaseSaving
	PhaseBundling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseEditing:
		return "editing"
	case PhaseSaving:
		return "saving"
	case PhaseBundling:
		return "bundling"
	default:
		return "unknown"
	}
}

// Draft is the uncommitted copy of the editable fields. It is a value: every
// edit produces a new Draft.
type Draft struct {
	AccountID   string `json:"accountId"`
	AuthBaseURL string `json:"authBaseUrl"`
	APIURL      string `json:"apiUrl"`
	LogFilter   string `json:"logFilter"`
}

// DraftFromConfig copies the editable fields out of a stored configuration.
func DraftFromConfig(cfg account.Config) Draft {
	return Draft{
		AccountID:   cfg.AccountID,
		AuthBaseURL: cfg.AuthBaseURL,
		APIURL:      cfg.APIURL,
		LogFilter:   cfg.LogFilter,
	}
}

func (d Draft) WithAccountID(v string) Draft {
	d.AccountID = v
	return d
}

func (d Draft) WithAuthBaseURL(v string) Draft {
	d.AuthBaseURL = v
	return d
}

func (d Draft) WithAPIURL(v string) Draft {
	d.APIURL = v
	return d
}

func (d Draft) WithLogFilter(v string) Draft {
	d.LogFilter = v
	return d
}

// Fields converts the draft for validation.
func (d Draft) Fields() account.Fields {
	return account.Fields{
		AccountID:   d.AccountID,
		AuthBaseURL: d.AuthBaseURL,
		APIURL:      d.APIURL,
		LogFilter:   d.LogFilter,
	}
}

// UiState is the snapshot rendered by the view layer. It is replaced wholesale
// on every recomputation.
type UiState struct {
	IsSaveEnabled      bool  `json:"isSaveEnabled"`
	LogBundleSizeBytes int64 `json:"logBundleSizeBytes"`
}

// ActionKind tags an Action.
type ActionKind string

const (
	ActionNavigateBack   ActionKind = "navigate_back"
	ActionFillFields     ActionKind = "fill_fields"
	ActionBundleProgress ActionKind = "bundle_progress"
	ActionFailure        ActionKind = "failure"
)

// Operation names the controller operation a failure belongs to.
type Operation string

const (
	OperationLoad   Operation = "load"
	OperationSave   Operation = "save"
	OperationExport Operation = "export"
)

// Action is a one-shot event for the view layer. Only the payload matching
// Kind is set.
type Action struct {
	Kind     ActionKind      `json:"kind"`
	Fill     *Draft          `json:"fill,omitempty"`
	Progress *BundleProgress `json:"progress,omitempty"`
	Failure  *Failure        `json:"failure,omitempty"`
}

// BundleProgress is forwarded after every archive entry.
type BundleProgress struct {
	Entry   string `json:"entry"`
	Entries int    `json:"entries"`
}

// Failure reports a failed operation to the view layer.
type Failure struct {
	Operation Operation `json:"operation"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

func navigateBack() Action {
	return Action{Kind: ActionNavigateBack}
}

func fillFields(d Draft) Action {
	return Action{Kind: ActionFillFields, Fill: &d}
}

func bundleProgress(entry string, entries int) Action {
	return Action{Kind: ActionBundleProgress, Progress: &BundleProgress{Entry: entry, Entries: entries}}
}

func failure(op Operation, err error) Action {
	return Action{Kind: ActionFailure, Failure: &Failure{Operation: op, Message: err.Error(), Err: err}}
}
