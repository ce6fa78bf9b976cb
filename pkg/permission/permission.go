// Package permission decides whether the app can access shared storage and,
// when it cannot, issues the platform request that lets the user grant it.
//
// Requests never block. A runtime prompt resolves later through
// HandleRuntimeResult; the manage-all-files settings screen resolves through
// HandleSettingsReturn and carries no result, so callers evaluate again.
package permission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/capability"
	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
	"github.com/lilu-red/filebridge/pkg/intent"
	"github.com/lilu-red/filebridge/pkg/log"
)

// WriteExternalStorage is the runtime permission requested on the
// RuntimeRequestable tier.
const WriteExternalStorage = "android.permission.WRITE_EXTERNAL_STORAGE"

// Request codes attached to issued requests.
const (
	RequestCodeStorage       = 1
	RequestCodeStorageManage = 2
)

// State is the outcome of evaluating storage access.
type State int

const (
	// Granted means storage access is available now.
	Granted State = iota
	// NeedsLegacyStorageRequest means the write permission must be requested with a runtime prompt.
	NeedsLegacyStorageRequest
	// NeedsManageAllFilesRequest means the user must grant manage-all-files in system settings.
	NeedsManageAllFilesRequest
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case NeedsLegacyStorageRequest:
		return "needs_legacy_storage_request"
	case NeedsManageAllFilesRequest:
		return "needs_manage_all_files_request"
	default:
		return "unknown"
	}
}

// Decision is one evaluation. Decisions are computed fresh on every query.
type Decision struct {
	State State
	Tier  capability.PermissionTier
}

// Granted reports whether access is available.
func (d Decision) Granted() bool {
	return d.State == Granted
}

// Checker reads the current grant state from the platform.
type Checker interface {
	IsExternalStorageManager(ctx context.Context) (bool, error)
	CheckSelfPermission(ctx context.Context, permission string) (bool, error)
}

// Requester shows platform permission UI. Both calls return as soon as the
// UI is launched.
type Requester interface {
	RequestPermissions(ctx context.Context, permissions []string, token string) error
	StartSettings(ctx context.Context, in *intent.Intent, token string) error
}

// Kind distinguishes the two request mechanisms.
type Kind string

const (
	KindRuntime  Kind = "runtime"
	KindSettings Kind = "settings"
)

// Pending is an issued request waiting for the user.
type Pending struct {
	Token       string
	Kind        Kind
	RequestCode int
	Permissions []string
	IssuedAt    time.Time
}

// Result is delivered to listeners when a pending request resolves.
// Known is false for settings returns, which carry no grant result.
type Result struct {
	Token   string
	Kind    Kind
	Granted bool
	Known   bool
}

// Manager evaluates and requests storage access.
type Manager struct {
	Version   capability.VersionSource
	Checker   Checker
	Requester Requester
	Logger    *zap.Logger

	mu        sync.Mutex
	pending   map[string]Pending
	listeners map[int]func(Result)
	nextID    int
}

// NewManager returns a Manager.
func NewManager(version capability.VersionSource, checker Checker, requester Requester, logger *zap.Logger) *Manager {
	return &Manager{
		Version:   version,
		Checker:   checker,
		Requester: requester,
		Logger:    logger,
	}
}

// Evaluate classifies the platform and reports whether access is granted.
func (m *Manager) Evaluate(ctx context.Context) (Decision, error) {
	tiers, err := capability.Current(ctx, m.Version)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{State: Granted, Tier: tiers.Permission}

	switch tiers.Permission {
	case capability.TierScopedManageAll:
		ok, err := m.Checker.IsExternalStorageManager(ctx)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			d.State = NeedsManageAllFilesRequest
		}
	case capability.TierRuntimeRequestable:
		ok, err := m.Checker.CheckSelfPermission(ctx, WriteExternalStorage)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			d.State = NeedsLegacyStorageRequest
		}
	}
	return d, nil
}

// Request issues the platform request matching d and returns its token.
// A granted decision issues nothing and returns "".
func (m *Manager) Request(ctx context.Context, d Decision) (string, error) {
	logger := log.OrNop(m.Logger)

	var p Pending
	switch d.State {
	case NeedsManageAllFilesRequest:
		p = Pending{Kind: KindSettings, RequestCode: RequestCodeStorageManage}
	case NeedsLegacyStorageRequest:
		p = Pending{
			Kind:        KindRuntime,
			RequestCode: RequestCodeStorage,
			Permissions: []string{WriteExternalStorage},
		}
	default:
		return "", nil
	}
	p.Token = uuid.NewString()
	p.IssuedAt = time.Now()

	// Register first so a result delivered during the call is not dropped.
	m.track(p)

	var err error
	if p.Kind == KindSettings {
		err = m.Requester.StartSettings(ctx, intent.New(intent.ActionManageAllFilesAccessPermission), p.Token)
	} else {
		err = m.Requester.RequestPermissions(ctx, p.Permissions, p.Token)
	}
	if err != nil {
		m.take(p.Token, p.Kind)
		return "", err
	}

	logger.Info("storage permission requested",
		zap.String("kind", string(p.Kind)),
		zap.Int("request_code", p.RequestCode),
		zap.String("token", p.Token))
	return p.Token, nil
}

// EvaluateAndRequest evaluates and, if access is missing, issues the request.
// It does not re-evaluate after issuing.
func (m *Manager) EvaluateAndRequest(ctx context.Context) (Decision, string, error) {
	d, err := m.Evaluate(ctx)
	if err != nil {
		return Decision{}, "", err
	}
	token, err := m.Request(ctx, d)
	if err != nil {
		return d, "", err
	}
	return d, token, nil
}

// HandleRuntimeResult resolves a runtime prompt. Unknown tokens are reported
// and ignored.
func (m *Manager) HandleRuntimeResult(token string, granted bool) {
	if _, ok := m.take(token, KindRuntime); !ok {
		m.reportStray("permission.HandleRuntimeResult", token)
		return
	}
	logger := log.OrNop(m.Logger)
	if granted {
		logger.Info("storage permission granted", zap.String("token", token))
	} else {
		logger.Warn("storage permission not granted", zap.String("token", token))
	}
	m.notify(Result{Token: token, Kind: KindRuntime, Granted: granted, Known: true})
}

// HandleSettingsReturn clears a settings-screen request after the user
// navigates back. The outcome must be read with Evaluate.
func (m *Manager) HandleSettingsReturn(token string) {
	if _, ok := m.take(token, KindSettings); !ok {
		m.reportStray("permission.HandleSettingsReturn", token)
		return
	}
	log.OrNop(m.Logger).Info("returned from storage settings", zap.String("token", token))
	m.notify(Result{Token: token, Kind: KindSettings})
}

// Pending returns the outstanding requests.
func (m *Manager) Pending() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pending, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p)
	}
	return out
}

// Listen subscribes to resolved requests and returns an unsubscribe function.
func (m *Manager) Listen(handler func(Result)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = make(map[int]func(Result))
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = handler
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) track(p Pending) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.pending = make(map[string]Pending)
	}
	m.pending[p.Token] = p
}

// take removes and returns the pending request for token if it has the given kind.
func (m *Manager) take(token string, kind Kind) (Pending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[token]
	if !ok || p.Kind != kind {
		return Pending{}, false
	}
	delete(m.pending, token)
	return p, true
}

func (m *Manager) notify(r Result) {
	m.mu.Lock()
	handlers := make([]func(Result), 0, len(m.listeners))
	for _, h := range m.listeners {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(r)
	}
}

func (m *Manager) reportStray(op, token string) {
	bridgeerrors.Report(&bridgeerrors.BridgeError{
		Op:   op,
		Kind: bridgeerrors.KindParsing,
		Err:  &bridgeerrors.ParseError{Channel: "permission", DataType: "pending request", Got: token},
	})
}
