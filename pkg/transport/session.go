package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	bridgeerrors "github.com/lilu-red/filebridge/pkg/errors"
	"github.com/lilu-red/filebridge/pkg/log"
	"github.com/lilu-red/filebridge/pkg/platform"
)

// CodeInternal is the error code for failures that carry no channel error code.
const CodeInternal = "internal"

// Session is a full-duplex connection to a shell process.
//
// Inbound calls and events run one at a time on a single worker goroutine,
// which is registered as the platform dispatch function for the duration of
// Serve. Responses to outbound calls are resolved by the reader, so handlers
// running on the worker may call back into the peer.
//
// A Session implements platform.NativeBridge.
type Session struct {
	// OnServe, when set, runs on the worker before any inbound frame is
	// handled. The reader is already running, so it may call the peer.
	OnServe func()

	r      io.Reader
	w      io.Writer
	codec  platform.TypedCodec
	logger *zap.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan *Envelope
	closed  bool

	queue *workQueue
	done  chan struct{}
}

// NewSession returns a session reading frames from r and writing them to w.
func NewSession(r io.Reader, w io.Writer, codec platform.TypedCodec, logger *zap.Logger) *Session {
	if codec == nil {
		codec = platform.JsonCodec{}
	}
	return &Session{
		r:       r,
		w:       w,
		codec:   codec,
		logger:  log.OrNop(logger),
		pending: make(map[uint64]chan *Envelope),
		queue:   newWorkQueue(),
		done:    make(chan struct{}),
	}
}

// Serve reads frames until the peer closes the stream, a frame cannot be
// decoded, or ctx is done. A clean end of stream returns nil.
//
// Serve must be called at most once.
func (s *Session) Serve(ctx context.Context) error {
	platform.RegisterDispatch(s.queue.push)
	defer platform.RegisterDispatch(nil)

	if s.OnServe != nil {
		s.queue.push(s.OnServe)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.queue.run()
	}()

	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop() }()

	var err error
	select {
	case err = <-readErr:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.shutdown()
	s.queue.close()
	<-workerDone

	if err == io.EOF {
		s.logger.Debug("peer closed stream")
		return nil
	}
	return err
}

func (s *Session) readLoop() error {
	for {
		payload, err := ReadFrame(s.r)
		if err != nil {
			if err != io.EOF {
				s.report("transport.read", err)
			}
			return err
		}
		env, err := DecodeEnvelope(s.codec, payload)
		if err != nil {
			s.report("transport.decode", err)
			return err
		}
		s.route(env)
	}
}

func (s *Session) route(env *Envelope) {
	switch env.Kind {
	case KindCall:
		s.queue.push(func() { s.handleCall(env) })
	case KindEvent, KindDone:
		s.queue.push(func() { s.handleEvent(env) })
	case KindResult, KindError, KindNotImplemented:
		s.resolve(env)
	default:
		s.logger.Warn("unknown frame kind", zap.String("kind", env.Kind), zap.Uint64("id", env.ID))
		if env.ID != 0 {
			s.reply(&Envelope{ID: env.ID, Kind: KindNotImplemented})
		}
	}
}

func (s *Session) handleCall(env *Envelope) {
	reply := &Envelope{ID: env.ID, Channel: env.Channel, Method: env.Method}
	defer func() {
		if r := recover(); r != nil {
			bridgeerrors.ReportPanic(&bridgeerrors.PanicError{
				Op:         "transport.call",
				Value:      r,
				StackTrace: bridgeerrors.CaptureStack(),
			})
			reply.Kind = KindError
			reply.Error = platform.NewChannelError(CodeInternal, fmt.Sprint(r))
			s.reply(reply)
		}
	}()

	result, err := s.callLocal(env)
	switch {
	case err == nil:
		reply.Kind = KindResult
		reply.Result = result
	case errors.Is(err, platform.ErrMethodNotFound), errors.Is(err, platform.ErrChannelNotFound):
		reply.Kind = KindNotImplemented
	default:
		reply.Kind = KindError
		reply.Error = asChannelError(err)
	}
	s.logger.Debug("inbound call",
		zap.String("channel", env.Channel),
		zap.String("method", env.Method),
		zap.String("reply", reply.Kind),
	)
	s.reply(reply)
}

func (s *Session) callLocal(env *Envelope) (any, error) {
	args, err := platform.DefaultCodec.Encode(env.Args)
	if err != nil {
		return nil, err
	}
	out, err := platform.HandleMethodCall(env.Channel, env.Method, args)
	if err != nil {
		return nil, err
	}
	return platform.DefaultCodec.Decode(out)
}

func (s *Session) handleEvent(env *Envelope) {
	var err error
	switch {
	case env.Kind == KindDone:
		err = platform.HandleEventDone(env.Channel)
	case env.Error != nil:
		err = platform.HandleEventError(env.Channel, env.Error.Code, env.Error.Message)
	default:
		var data []byte
		data, err = platform.DefaultCodec.Encode(env.Args)
		if err == nil {
			err = platform.HandleEvent(env.Channel, data)
		}
	}
	if err != nil {
		s.logger.Debug("event not delivered", zap.String("channel", env.Channel), zap.Error(err))
	}
}

func (s *Session) resolve(env *Envelope) {
	s.mu.Lock()
	ch, ok := s.pending[env.ID]
	delete(s.pending, env.ID)
	s.mu.Unlock()
	if !ok {
		bridgeerrors.Report(&bridgeerrors.BridgeError{
			Op:      "transport.resolve",
			Kind:    bridgeerrors.KindParsing,
			Channel: env.Channel,
			Err:     fmt.Errorf("response for unknown call %d", env.ID),
		})
		return
	}
	ch <- env
}

func (s *Session) reply(env *Envelope) {
	if err := s.send(env); err != nil {
		s.report("transport.reply", err)
	}
}

func (s *Session) send(env *Envelope) error {
	payload, err := EncodeEnvelope(s.codec, env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return WriteFrame(s.w, payload)
}

// roundTrip sends env with a fresh ID and waits for the matching response.
func (s *Session) roundTrip(env *Envelope) (*Envelope, error) {
	env.ID = s.nextID.Add(1)
	ch := make(chan *Envelope, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, platform.ErrClosed
	}
	s.pending[env.ID] = ch
	s.mu.Unlock()

	if err := s.send(env); err != nil {
		s.mu.Lock()
		delete(s.pending, env.ID)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, responseErr(env, resp)
	case <-s.done:
		return nil, platform.ErrClosed
	}
}

func responseErr(req, resp *Envelope) error {
	switch resp.Kind {
	case KindResult:
		return nil
	case KindNotImplemented:
		return fmt.Errorf("%s %s: %w", req.Channel, req.Method, platform.ErrMethodNotFound)
	case KindError:
		if resp.Error != nil {
			return resp.Error
		}
		return platform.NewChannelError(CodeInternal, "")
	default:
		return fmt.Errorf("%w: kind %q", platform.ErrUnexpectedResponse, resp.Kind)
	}
}

// InvokeMethod calls a method implemented by the peer.
func (s *Session) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	decoded, err := platform.DefaultCodec.Decode(args)
	if err != nil {
		return nil, err
	}
	resp, err := s.roundTrip(&Envelope{Kind: KindCall, Channel: channel, Method: method, Args: decoded})
	if err != nil {
		return nil, err
	}
	return platform.DefaultCodec.Encode(resp.Result)
}

// StartEventStream asks the peer to start sending events for channel.
func (s *Session) StartEventStream(channel string) error {
	_, err := s.roundTrip(&Envelope{Kind: KindListen, Channel: channel})
	return err
}

// StopEventStream asks the peer to stop sending events for channel.
func (s *Session) StopEventStream(channel string) error {
	_, err := s.roundTrip(&Envelope{Kind: KindCancel, Channel: channel})
	return err
}

// shutdown fails every outstanding outbound call with platform.ErrClosed.
func (s *Session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = make(map[uint64]chan *Envelope)
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) report(op string, err error) {
	bridgeerrors.Report(&bridgeerrors.BridgeError{
		Op:   op,
		Kind: bridgeerrors.KindPlatform,
		Err:  err,
	})
}

func asChannelError(err error) *platform.ChannelError {
	var chErr *platform.ChannelError
	if errors.As(err, &chErr) {
		return chErr
	}
	return platform.NewChannelError(CodeInternal, err.Error())
}

// workQueue is an unbounded FIFO drained by a single goroutine. The reader
// never blocks on it, so responses keep flowing while a handler waits on one.
type workQueue struct {
	mu     sync.Mutex
	items  []func()
	closed bool
	signal chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{signal: make(chan struct{}, 1)}
}

func (q *workQueue) push(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *workQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// run executes queued work until the queue is closed and drained.
func (q *workQueue) run() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.signal
			continue
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()
		fn()
	}
}
