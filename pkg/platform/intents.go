package platform

import (
	"context"
	"fmt"

	"github.com/lilu-red/filebridge/pkg/intent"
)

// Intents provides access to the native activity launcher.
var Intents = &IntentService{
	channel: NewMethodChannel("filebridge/intent"),
}

// IntentService resolves and starts intents on the native side.
type IntentService struct {
	channel *MethodChannel
}

// CanResolve returns whether any installed activity handles in.
//
// On Android 11 and later, package visibility rules apply: only apps
// matching the manifest's <queries> block are visible, so the embedding app
// must declare a VIEW query for the MIME types it opens.
func (s *IntentService) CanResolve(ctx context.Context, in *intent.Intent) (bool, error) {
	if err := validateIntent(in); err != nil {
		return false, err
	}
	result, err := s.channel.InvokeContext(ctx, "resolveActivity", map[string]any{
		"intent": in.ToMap(),
	})
	if err != nil {
		return false, err
	}
	component, err := responseField("intent.resolveActivity", result, "component")
	if err != nil {
		return false, err
	}
	return parseString(component) != "", nil
}

// Start launches in. The call returns once the launch is issued.
func (s *IntentService) Start(ctx context.Context, in *intent.Intent) error {
	if err := validateIntent(in); err != nil {
		return err
	}
	_, err := s.channel.InvokeContext(ctx, "startActivity", map[string]any{
		"intent": in.ToMap(),
	})
	return err
}

func validateIntent(in *intent.Intent) error {
	if in == nil {
		return fmt.Errorf("intent: %w: nil intent", ErrInvalidArguments)
	}
	if in.Action == "" {
		return fmt.Errorf("intent: %w: missing action", ErrInvalidArguments)
	}
	return nil
}
