package platform

import (
	"context"

	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
	"github.com/lilu-red/filebridge/pkg/intent"
)

const storagePermissionResultChannel = "filebridge/permissions/result"

// StoragePermission is the singleton storage permission service.
var StoragePermission = &StoragePermissionService{
	channel: NewMethodChannel("filebridge/permissions"),
	results: NewEventChannel(storagePermissionResultChannel),
}

// StoragePermissionService checks and requests shared-storage access.
// Requests return as soon as native UI is shown; outcomes arrive on the
// result event channel.
type StoragePermissionService struct {
	channel *MethodChannel
	results *EventChannel
}

// PermissionResultEvent is a resolved request delivered by native code.
type PermissionResultEvent struct {
	Token string
	// Kind is "runtime" for permission prompts and "settings" for the
	// return from a settings screen.
	Kind string
	// Granted is only meaningful for runtime results.
	Granted bool
}

// IsExternalStorageManager reports whether the manage-all-files grant is held.
func (s *StoragePermissionService) IsExternalStorageManager(ctx context.Context) (bool, error) {
	result, err := s.channel.InvokeContext(ctx, "isExternalStorageManager", nil)
	if err != nil {
		return false, err
	}
	v, err := responseField("permissions.isExternalStorageManager", result, "granted")
	if err != nil {
		return false, err
	}
	return parseBool(v), nil
}

// CheckSelfPermission reports whether a runtime permission is granted.
func (s *StoragePermissionService) CheckSelfPermission(ctx context.Context, permission string) (bool, error) {
	result, err := s.channel.InvokeContext(ctx, "checkSelfPermission", map[string]any{
		"permission": permission,
	})
	if err != nil {
		return false, err
	}
	v, err := responseField("permissions.checkSelfPermission", result, "granted")
	if err != nil {
		return false, err
	}
	return parseBool(v), nil
}

// RequestPermissions shows the runtime permission prompt. The result is
// delivered on the result channel tagged with token.
func (s *StoragePermissionService) RequestPermissions(ctx context.Context, permissions []string, token string) error {
	_, err := s.channel.InvokeContext(ctx, "requestPermissions", map[string]any{
		"permissions": permissions,
		"token":       token,
	})
	return err
}

// StartSettings opens a settings screen. Native code sends a "settings"
// event tagged with token when the user comes back.
func (s *StoragePermissionService) StartSettings(ctx context.Context, in *intent.Intent, token string) error {
	if err := validateIntent(in); err != nil {
		return err
	}
	_, err := s.channel.InvokeContext(ctx, "startSettings", map[string]any{
		"intent": in.ToMap(),
		"token":  token,
	})
	return err
}

// ListenResults subscribes to request outcomes. Handlers run on the call
// thread when a dispatch function is registered.
func (s *StoragePermissionService) ListenResults(handler func(PermissionResultEvent)) (unsubscribe func()) {
	sub := s.results.Listen(EventHandler{
		OnEvent: func(data any) {
			ev, ok := parsePermissionResult(data)
			if !ok {
				bridgeerrors.Report(&bridgeerrors.BridgeError{
					Op:      "permissions.parseResult",
					Kind:    bridgeerrors.KindParsing,
					Channel: storagePermissionResultChannel,
					Err: &bridgeerrors.ParseError{
						Channel:  storagePermissionResultChannel,
						DataType: "PermissionResultEvent",
						Got:      data,
					},
				})
				return
			}
			DispatchOrRun(func() { handler(ev) })
		},
		OnError: func(err error) {
			bridgeerrors.Report(&bridgeerrors.BridgeError{
				Op:      "permissions.streamError",
				Kind:    bridgeerrors.KindPlatform,
				Channel: storagePermissionResultChannel,
				Err:     err,
			})
		},
	})
	return sub.Cancel
}

func parsePermissionResult(data any) (PermissionResultEvent, bool) {
	m := parseMap(data)
	if m == nil {
		return PermissionResultEvent{}, false
	}
	ev := PermissionResultEvent{
		Token:   parseString(m["token"]),
		Kind:    parseString(m["kind"]),
		Granted: parseBool(m["granted"]),
	}
	if ev.Token == "" || (ev.Kind != "runtime" && ev.Kind != "settings") {
		return PermissionResultEvent{}, false
	}
	return ev, true
}
