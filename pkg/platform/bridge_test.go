package platform

import (
	"fmt"
	"sync"
	"testing"
)

type recordedCall struct {
	Channel string
	Method  string
	Args    map[string]any
}

// recordingBridge answers method calls from a table keyed by
// "channel.method" and records every call and stream toggle.
type recordingBridge struct {
	mu        sync.Mutex
	responses map[string]any
	errs      map[string]error
	calls     []recordedCall
	started   []string
	stopped   []string
	startErr  error
}

func newRecordingBridge() *recordingBridge {
	return &recordingBridge{
		responses: make(map[string]any),
		errs:      make(map[string]error),
	}
}

func (b *recordingBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	decoded, err := DefaultCodec.Decode(args)
	if err != nil {
		return nil, err
	}
	key := channel + "." + method
	b.mu.Lock()
	b.calls = append(b.calls, recordedCall{Channel: channel, Method: method, Args: parseMap(decoded)})
	resp, err := b.responses[key], b.errs[key]
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return DefaultCodec.Encode(resp)
}

func (b *recordingBridge) StartEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.started = append(b.started, channel)
	return nil
}

func (b *recordingBridge) StopEventStream(channel string) error {
	b.mu.Lock()
	b.stopped = append(b.stopped, channel)
	b.mu.Unlock()
	return nil
}

func (b *recordingBridge) lastCall(t *testing.T) recordedCall {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		t.Fatal("no calls recorded")
	}
	return b.calls[len(b.calls)-1]
}

func (b *recordingBridge) respond(channel, method string, resp any) {
	b.responses[channel+"."+method] = resp
}

func (b *recordingBridge) fail(channel, method string, err error) {
	b.errs[channel+"."+method] = err
}

func installBridge(t *testing.T) *recordingBridge {
	t.Helper()
	b := newRecordingBridge()
	SetNativeBridge(b)
	RegisterDispatch(func(cb func()) { cb() })
	t.Cleanup(ResetForTest)
	return b
}

var channelSeq struct {
	sync.Mutex
	n int
}

// uniqueName avoids collisions in the process-wide channel registry.
func uniqueName(t *testing.T) string {
	channelSeq.Lock()
	defer channelSeq.Unlock()
	channelSeq.n++
	return fmt.Sprintf("test/%s/%d", t.Name(), channelSeq.n)
}
