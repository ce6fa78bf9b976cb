package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lilu-red/filebridge/pkg/platform"
)

// peer plays the shell side of a session over in-memory pipes.
type peer struct {
	t      *testing.T
	codec  platform.TypedCodec
	in     *io.PipeWriter
	out    *io.PipeWriter
	frames chan *Envelope

	once    sync.Once
	serveCh chan error
	err     error
}

func startSession(t *testing.T, codec platform.TypedCodec, opts ...func(*Session)) (*Session, *peer) {
	t.Helper()
	t.Cleanup(platform.ResetForTest)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	s := NewSession(inR, outW, codec, zaptest.NewLogger(t))
	for _, opt := range opts {
		opt(s)
	}
	p := &peer{
		t:       t,
		codec:   codec,
		in:      inW,
		out:     outW,
		frames:  make(chan *Envelope, 16),
		serveCh: make(chan error, 1),
	}

	go func() {
		defer close(p.frames)
		for {
			payload, err := ReadFrame(outR)
			if err != nil {
				return
			}
			env, err := DecodeEnvelope(codec, payload)
			if err != nil {
				return
			}
			p.frames <- env
		}
	}()
	go func() { p.serveCh <- s.Serve(context.Background()) }()

	t.Cleanup(func() { p.close() })
	return s, p
}

func (p *peer) send(env *Envelope) {
	p.t.Helper()
	payload, err := EncodeEnvelope(p.codec, env)
	require.NoError(p.t, err)
	require.NoError(p.t, WriteFrame(p.in, payload))
}

func (p *peer) next() *Envelope {
	p.t.Helper()
	select {
	case env, ok := <-p.frames:
		require.True(p.t, ok, "session output closed")
		return env
	case <-time.After(2 * time.Second):
		p.t.Fatal("timed out waiting for frame")
		return nil
	}
}

// close ends the inbound stream and returns Serve's result.
func (p *peer) close() error {
	p.once.Do(func() {
		p.in.Close()
		select {
		case p.err = <-p.serveCh:
		case <-time.After(2 * time.Second):
			p.err = errors.New("serve did not return")
		}
		p.out.Close()
	})
	return p.err
}

func TestSessionInboundCall(t *testing.T) {
	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := platform.CodecByName(name)
			require.NoError(t, err)
			_, p := startSession(t, codec)

			ch := platform.NewMethodChannel("transport-test/echo")
			ch.SetHandler(func(method string, args any) (any, error) {
				return map[string]any{"method": method, "args": args}, nil
			})

			p.send(&Envelope{ID: 7, Kind: KindCall, Channel: ch.Name(), Method: "echo", Args: map[string]any{"x": "y"}})

			reply := p.next()
			assert.Equal(t, uint64(7), reply.ID)
			assert.Equal(t, KindResult, reply.Kind)
			result, ok := reply.Result.(map[string]any)
			require.True(t, ok, "result is %T", reply.Result)
			assert.Equal(t, "echo", result["method"])
			assert.Equal(t, map[string]any{"x": "y"}, result["args"])

			assert.NoError(t, p.close())
		})
	}
}

func TestSessionInboundCallNotImplemented(t *testing.T) {
	_, p := startSession(t, platform.JsonCodec{})
	ch := platform.NewMethodChannel("transport-test/silent")

	p.send(&Envelope{ID: 1, Kind: KindCall, Channel: "transport-test/unknown", Method: "x"})
	assert.Equal(t, &Envelope{ID: 1, Kind: KindNotImplemented, Channel: "transport-test/unknown", Method: "x"}, p.next())

	p.send(&Envelope{ID: 2, Kind: KindCall, Channel: ch.Name(), Method: "x"})
	reply := p.next()
	assert.Equal(t, uint64(2), reply.ID)
	assert.Equal(t, KindNotImplemented, reply.Kind)
}

func TestSessionInboundCallErrors(t *testing.T) {
	_, p := startSession(t, platform.JsonCodec{})
	ch := platform.NewMethodChannel("transport-test/failing")
	ch.SetHandler(func(method string, _ any) (any, error) {
		switch method {
		case "channel":
			return nil, platform.NewChannelError("missing_argument", "filePath")
		case "plain":
			return nil, errors.New("disk on fire")
		default:
			panic("handler exploded")
		}
	})

	p.send(&Envelope{ID: 1, Kind: KindCall, Channel: ch.Name(), Method: "channel"})
	reply := p.next()
	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, "missing_argument", reply.Error.Code)
	assert.Equal(t, "filePath", reply.Error.Message)

	p.send(&Envelope{ID: 2, Kind: KindCall, Channel: ch.Name(), Method: "plain"})
	reply = p.next()
	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, CodeInternal, reply.Error.Code)
	assert.Equal(t, "disk on fire", reply.Error.Message)

	p.send(&Envelope{ID: 3, Kind: KindCall, Channel: ch.Name(), Method: "panic"})
	reply = p.next()
	assert.Equal(t, uint64(3), reply.ID)
	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, "handler exploded", reply.Error.Message)

	// The session survives a panicking handler.
	p.send(&Envelope{ID: 4, Kind: KindCall, Channel: ch.Name(), Method: "plain"})
	assert.Equal(t, uint64(4), p.next().ID)
}

func TestSessionOutboundCall(t *testing.T) {
	s, p := startSession(t, platform.JsonCodec{})
	platform.SetNativeBridge(s)

	type result struct {
		sdk int
		err error
	}
	done := make(chan result, 1)
	go func() {
		sdk, err := platform.Device.SDKInt(context.Background())
		done <- result{sdk, err}
	}()

	call := p.next()
	assert.Equal(t, KindCall, call.Kind)
	assert.Equal(t, "filebridge/device", call.Channel)
	assert.Equal(t, "sdkInt", call.Method)
	p.send(&Envelope{ID: call.ID, Kind: KindResult, Result: map[string]any{"sdkInt": 30}})

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, 30, got.sdk)
}

func TestSessionOutboundCallErrors(t *testing.T) {
	s, p := startSession(t, platform.JsonCodec{})
	platform.SetNativeBridge(s)

	errs := make(chan error, 1)
	go func() {
		_, err := platform.Paths.FilesDir(context.Background())
		errs <- err
	}()
	call := p.next()
	p.send(&Envelope{ID: call.ID, Kind: KindError, Error: platform.NewChannelError("denied", "no")})
	var chErr *platform.ChannelError
	require.True(t, errors.As(<-errs, &chErr))
	assert.Equal(t, "denied", chErr.Code)

	go func() {
		_, err := platform.Paths.FilesDir(context.Background())
		errs <- err
	}()
	call = p.next()
	p.send(&Envelope{ID: call.ID, Kind: KindNotImplemented})
	assert.ErrorIs(t, <-errs, platform.ErrMethodNotFound)
}

func TestSessionHandlerCanCallPeer(t *testing.T) {
	s, p := startSession(t, platform.JsonCodec{})
	platform.SetNativeBridge(s)

	ch := platform.NewMethodChannel("transport-test/nested")
	ch.SetHandler(func(string, any) (any, error) {
		return platform.Paths.PublicDownloadDir(context.Background())
	})

	p.send(&Envelope{ID: 100, Kind: KindCall, Channel: ch.Name(), Method: "dir"})

	nested := p.next()
	require.Equal(t, KindCall, nested.Kind)
	assert.Equal(t, "publicDownloadDir", nested.Method)
	p.send(&Envelope{ID: nested.ID, Kind: KindResult, Result: map[string]any{"path": "/home/u/Downloads"}})

	reply := p.next()
	assert.Equal(t, uint64(100), reply.ID)
	assert.Equal(t, KindResult, reply.Kind)
	assert.Equal(t, "/home/u/Downloads", reply.Result)
}

func TestSessionOnServeRunsBeforeInboundCalls(t *testing.T) {
	ch := platform.NewMethodChannel(t.Name())
	ch.SetHandler(func(string, any) (any, error) {
		return platform.Device.SDKInt(context.Background())
	})

	sent := make(chan struct{})
	_, p := startSession(t, platform.JsonCodec{}, func(s *Session) {
		s.OnServe = func() {
			<-sent
			platform.SetNativeBridge(s)
		}
	})

	p.send(&Envelope{ID: 7, Kind: KindCall, Channel: t.Name(), Method: "sdk"})
	close(sent)

	nested := p.next()
	require.Equal(t, KindCall, nested.Kind, "handler ran without a native bridge")
	assert.Equal(t, "filebridge/device", nested.Channel)
	p.send(&Envelope{ID: nested.ID, Kind: KindResult, Result: map[string]any{"sdkInt": 30}})

	reply := p.next()
	assert.Equal(t, uint64(7), reply.ID)
	assert.Equal(t, KindResult, reply.Kind)
	assert.EqualValues(t, 30, reply.Result)
}

func TestSessionEvents(t *testing.T) {
	s, p := startSession(t, platform.JsonCodec{})
	platform.SetNativeBridge(s)

	events := make(chan platform.PermissionResultEvent, 1)
	subscribed := make(chan func(), 1)
	go func() {
		subscribed <- platform.StoragePermission.ListenResults(func(ev platform.PermissionResultEvent) {
			events <- ev
		})
	}()

	listen := p.next()
	assert.Equal(t, KindListen, listen.Kind)
	assert.Equal(t, "filebridge/permissions/result", listen.Channel)
	p.send(&Envelope{ID: listen.ID, Kind: KindResult})
	unsubscribe := <-subscribed

	p.send(&Envelope{Kind: KindEvent, Channel: listen.Channel, Args: map[string]any{
		"token": "abc", "kind": "runtime", "granted": true,
	}})
	select {
	case ev := <-events:
		assert.Equal(t, platform.PermissionResultEvent{Token: "abc", Kind: "runtime", Granted: true}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	go unsubscribe()
	cancel := p.next()
	assert.Equal(t, KindCancel, cancel.Kind)
	p.send(&Envelope{ID: cancel.ID, Kind: KindResult})
}

func TestSessionCloseFailsPendingCalls(t *testing.T) {
	s, p := startSession(t, platform.JsonCodec{})
	platform.SetNativeBridge(s)

	errs := make(chan error, 1)
	go func() {
		_, err := platform.Device.SDKInt(context.Background())
		errs <- err
	}()
	p.next()

	require.NoError(t, p.close())
	assert.ErrorIs(t, <-errs, platform.ErrClosed)

	_, err := s.InvokeMethod("filebridge/device", "sdkInt", nil)
	assert.ErrorIs(t, err, platform.ErrClosed)
}

func TestSessionMalformedFrameEndsServe(t *testing.T) {
	_, p := startSession(t, platform.JsonCodec{})
	require.NoError(t, WriteFrame(p.in, []byte(`{"id":1}`)))

	select {
	case err := <-p.serveCh:
		assert.ErrorIs(t, err, ErrMalformedFrame)
		p.serveCh <- err
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestSessionServeStopsOnContext(t *testing.T) {
	t.Cleanup(platform.ResetForTest)
	inR, inW := io.Pipe()
	defer inW.Close()
	s := NewSession(inR, io.Discard, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}
