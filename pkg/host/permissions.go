package host

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lilu-red/filebridge/pkg/intent"
	"github.com/lilu-red/filebridge/pkg/log"
)

// Request kinds recorded by Permissions.
const (
	RequestRuntime  = "runtime"
	RequestSettings = "settings"
)

// Request is a permission request issued to the host.
type Request struct {
	Token       string
	Kind        string
	Permissions []string
	Action      string
	Granted     bool
	At          time.Time
}

// Permissions answers storage permission queries by probing whether Dir is
// writable. There is no prompt to show: requests are recorded, probed again
// and reported to the handler set with SetResultHandler.
type Permissions struct {
	Dir    string
	Logger *zap.Logger

	mu       sync.Mutex
	requests []Request
	onResult func(Request)
}

// SetResultHandler sets the function that receives every recorded request.
// Passing nil detaches the current handler.
func (p *Permissions) SetResultHandler(fn func(Request)) {
	p.mu.Lock()
	p.onResult = fn
	p.mu.Unlock()
}

// IsExternalStorageManager reports whether Dir is writable.
func (p *Permissions) IsExternalStorageManager(ctx context.Context) (bool, error) {
	return p.writable(), nil
}

// CheckSelfPermission reports whether Dir is writable. Every permission maps
// to the same probe.
func (p *Permissions) CheckSelfPermission(ctx context.Context, permission string) (bool, error) {
	return p.writable(), nil
}

// RequestPermissions records a runtime request and resolves it immediately.
func (p *Permissions) RequestPermissions(ctx context.Context, permissions []string, token string) error {
	p.record(Request{
		Token:       token,
		Kind:        RequestRuntime,
		Permissions: append([]string(nil), permissions...),
		Granted:     p.writable(),
		At:          time.Now(),
	})
	return nil
}

// StartSettings records a settings request. The user is told where access is
// missing; the request resolves as a return from settings.
func (p *Permissions) StartSettings(ctx context.Context, in *intent.Intent, token string) error {
	if in == nil {
		return fmt.Errorf("nil settings intent")
	}
	p.record(Request{
		Token:  token,
		Kind:   RequestSettings,
		Action: in.Action,
		At:     time.Now(),
	})
	return nil
}

// Requests returns the requests issued so far.
func (p *Permissions) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

func (p *Permissions) record(r Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r)
	onResult := p.onResult
	p.mu.Unlock()

	log.OrNop(p.Logger).Info("storage access requested",
		zap.String("kind", r.Kind),
		zap.String("dir", p.Dir),
		zap.String("token", r.Token),
	)
	if onResult != nil {
		onResult(r)
	}
}

func (p *Permissions) writable() bool {
	if p.Dir == "" {
		return false
	}
	f, err := os.CreateTemp(p.Dir, ".filebridge-probe-*")
	if err != nil {
		log.OrNop(p.Logger).Debug("storage not writable", zap.String("dir", p.Dir), zap.Error(err))
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
