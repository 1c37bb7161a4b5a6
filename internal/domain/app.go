package domain

import "time"

// AppState enumerates lifecycle states for installed applications.
type AppState string

const (
	AppStatePending AppState = "PENDING"
	AppStateRunning AppState = "RUNNING"
	AppStateError   AppState = "ERROR"
	AppStateDeleted AppState = "DELETED"
)

// App is an installed application instance owned by exactly one user.
// ReleaseName is the immutable key the provisioning system identifies the
// instance by; it is never reused after the app reaches DELETED.
type App struct {
	ID          string
	UserID      string
	ReleaseName string
	Name        string
	Template    string
	Domain      *string
	Env         map[string]string
	State       AppState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Editable reports whether in-place settings edits are allowed in the
// current state.
func (a *App) Editable() bool {
	return a.State == AppStateRunning
}
