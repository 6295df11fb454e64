package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/objbridge/pkg/protocol"
)

// ErrNoSendFunc is returned by New when no SendMessage callback is given.
var ErrNoSendFunc = errors.New("bridge: SendMessage is required")

// Bridge is one endpoint of an object bridge. It serves its own object
// graph to the peer and mirrors the peer's graph as proxies, so both
// directions run over the same message channel.
//
// Messages from the peer must be passed to HandleMessage in the order they
// were sent. Outgoing messages are passed to Config.SendMessage in order.
type Bridge struct {
	id      string
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics

	// execMu serialises method invocation with timer-driven flushes, so
	// the flush never reads object fields while a method writes them.
	execMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	closeErr error
	server   *serverState
	client   *clientState
	sched    *scheduler

	outMu    sync.Mutex
	outbox   []*protocol.Message
	draining bool
}

// New creates a bridge that sends its messages through send.
func New(send SendFunc, opts ...Option) (*Bridge, error) {
	cfg := Config{SendMessage: send}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a bridge from cfg.
func NewWithConfig(cfg Config) (*Bridge, error) {
	if cfg.SendMessage == nil {
		return nil, ErrNoSendFunc
	}
	cfg.applyDefaults()
	if cfg.ID == "" {
		cfg.ID = ulid.Make().String()
	}

	b := &Bridge{
		id:      cfg.ID,
		cfg:     cfg,
		logger:  cfg.Logger.With("bridge_id", cfg.ID),
		tracer:  otel.Tracer(cfg.TracerName),
		metrics: cfg.Metrics,
		sched:   &scheduler{clock: cfg.clock, delay: cfg.Throttle},
	}
	b.server = newServerState(b)
	b.client = newClientState(b)
	b.metrics.bridgeOpened()
	return b, nil
}

// ID returns the bridge identifier.
func (b *Bridge) ID() string { return b.id }

// Root returns the future of the peer's root value.
func (b *Bridge) Root() *Future { return b.client.root }

// SendRoot announces value as this side's root. It may only be called
// once. Objects reachable from value are bridged.
func (b *Bridge) SendRoot(value any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	err := b.server.setRoot(value)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.requestFlush()
}

// Update schedules a flush so that changes to obj reach the peer.
func (b *Bridge) Update(obj Bridgeable) {
	b.flushSoon()
}

// Emit sends an event from obj. obj must be tracked by this bridge.
func (b *Bridge) Emit(obj Bridgeable, event string, payload any) error {
	if _, ok := asBridgeable(obj); !ok {
		return ErrNotBridgeable
	}
	return b.emit(obj.bridgeObject(), event, payload)
}

func (b *Bridge) emit(base *Object, event string, payload any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	err := b.server.queueEvent(base, event, payload)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.requestFlush()
}

// Retain keeps obj reachable, and therefore announced, until Release.
func (b *Bridge) Retain(obj Bridgeable) error {
	if _, ok := asBridgeable(obj); !ok {
		return ErrNotBridgeable
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.server.retain(obj)
	b.mu.Unlock()
	return b.requestFlush()
}

// Release undoes Retain. The object is deleted on the peer at the next
// flush unless it is reachable otherwise.
func (b *Bridge) Release(obj Bridgeable) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.server.release(obj)
	b.mu.Unlock()
	b.flushSoon()
}

// SendNow flushes immediately, ignoring the throttle. Call it from the
// goroutine that drives the bridge.
func (b *Bridge) SendNow() error {
	err := b.collect()
	if errors.Is(err, ErrClosed) {
		return err
	}
	sendErr := b.drain()
	if err != nil {
		return err
	}
	return sendErr
}

// collect runs a flush cycle and queues the resulting message. Calls are
// queued even when the flush fails.
func (b *Bridge) collect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.sched.disarm()
	before := len(b.server.tracked)
	msg, err := b.server.flush()
	if err != nil {
		msg = &protocol.Message{}
		b.metrics.flushFailed()
	}
	msg.Calls = b.client.takeCalls()
	b.metrics.objectsDelta(len(b.server.tracked) - before)
	if !msg.Empty() {
		b.outMu.Lock()
		b.outbox = append(b.outbox, msg)
		b.outMu.Unlock()
	}
	return err
}

// drain delivers queued messages in order. A nested drain, from a peer
// answering synchronously, leaves its messages to the outer loop.
func (b *Bridge) drain() error {
	b.outMu.Lock()
	if b.draining {
		b.outMu.Unlock()
		return nil
	}
	b.draining = true
	var err error
	for len(b.outbox) > 0 {
		msg := b.outbox[0]
		b.outbox = b.outbox[1:]
		b.outMu.Unlock()
		err = b.deliver(msg)
		b.outMu.Lock()
		if err != nil {
			b.outbox = nil
			break
		}
	}
	b.draining = false
	b.outMu.Unlock()

	if err != nil {
		b.Close(err)
	}
	return err
}

func (b *Bridge) deliver(msg *protocol.Message) error {
	b.logger.Debug("send", "summary", msg.Summary())
	if err := b.cfg.SendMessage(msg); err != nil {
		return fmt.Errorf("bridge: send: %w", err)
	}
	b.metrics.message("sent", msg)
	return nil
}

// requestFlush schedules a flush. Without a throttle the flush happens
// before it returns and its error is returned.
func (b *Bridge) requestFlush() error {
	if b.sched.immediate() {
		return b.SendNow()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.sched.arm(b.flushFromTimer)
	return nil
}

// flushFromTimer runs on the clock's goroutine. Object fields are read
// under execMu; delivery happens after it is released so a peer answering
// synchronously can invoke methods on this bridge.
func (b *Bridge) flushFromTimer() {
	b.execMu.Lock()
	err := b.collect()
	b.execMu.Unlock()
	if errors.Is(err, ErrClosed) {
		return
	}
	sendErr := b.drain()
	if err == nil {
		err = sendErr
	}
	if err != nil && !errors.Is(err, ErrClosed) {
		b.reportError(err)
	}
}

// flushSoon is requestFlush for callers with nobody to report to.
func (b *Bridge) flushSoon() {
	if err := b.requestFlush(); err != nil && !errors.Is(err, ErrClosed) {
		b.reportError(err)
	}
}

func (b *Bridge) reportError(err error) {
	b.logger.Error("flush failed", "error", err)
	if b.cfg.OnError != nil {
		b.cfg.OnError(err)
	}
}

// HandleMessage applies a message from the peer: proxies are created,
// updated and deleted, returns and events are delivered, and incoming
// calls are executed. A protocol error closes the bridge and is returned.
// Messages arriving after Close are ignored and ErrClosed is returned.
func (b *Bridge) HandleMessage(m *protocol.Message) error {
	if m == nil {
		return nil
	}
	if err := m.Validate(); err != nil {
		perr := &ProtocolError{Op: "validate", Err: err}
		b.fail(perr)
		return perr
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.logger.Debug("receive", "summary", m.Summary())
	b.metrics.message("received", m)
	notes, err := b.client.apply(m)
	if err != nil {
		b.mu.Unlock()
		b.fail(err)
		return err
	}
	calls := make([]inboundCall, len(m.Calls))
	for i, c := range m.Calls {
		calls[i] = b.server.prepareCall(c)
	}
	b.mu.Unlock()

	for _, fn := range notes {
		fn()
	}
	if len(calls) == 0 {
		return nil
	}

	type outcome struct {
		value any
		err   error
	}
	results := make([]outcome, len(calls))
	for i, in := range calls {
		results[i].value, results[i].err = b.invoke(in)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	for i, in := range calls {
		b.server.queueReturn(in.call.CallID, results[i].value, results[i].err)
	}
	b.mu.Unlock()
	b.flushSoon()
	return nil
}

func (b *Bridge) invoke(in inboundCall) (any, error) {
	span := b.startInvokeSpan(in)
	if in.err != nil {
		endSpan(span, in.err)
		return nil, in.err
	}
	b.execMu.Lock()
	value, err := in.method.invoke(in.obj, in.call.Params)
	b.execMu.Unlock()
	endSpan(span, err)
	if err != nil {
		b.logger.Debug("call failed",
			"type", in.info.Name,
			"method", in.call.Method,
			"error", err,
		)
	}
	return value, err
}

func (b *Bridge) fail(err error) {
	b.metrics.protocolError()
	b.logger.Error("protocol error", "error", err)
	b.Close(err)
}

func (b *Bridge) call(p *Proxy, method string, params []any) *Future {
	b.mu.Lock()
	if b.closed {
		err := b.closeErr
		b.mu.Unlock()
		b.metrics.callRejected()
		return failedFuture(err)
	}
	var callErr error
	switch {
	case p.deleted:
		callErr = &CallError{Method: method, Type: p.typ, ID: p.id, Err: ErrDeletedObject}
	case !p.HasMethod(method):
		callErr = &CallError{Method: method, Type: p.typ, ID: p.id, Err: ErrNoSuchMethod}
	}
	if callErr != nil {
		b.mu.Unlock()
		b.metrics.callRejected()
		return failedFuture(callErr)
	}
	f, err := b.client.queueCall(p, method, params)
	if err != nil {
		b.mu.Unlock()
		b.metrics.callRejected()
		return failedFuture(err)
	}
	span := b.startCallSpan(p, method, b.client.nextCallID)
	started := b.cfg.clock.Now()
	b.metrics.callStarted()
	f.settled = func(_ any, err error) {
		b.metrics.callSettled(b.cfg.clock.Now().Sub(started), err)
		endSpan(span, err)
	}
	b.mu.Unlock()

	b.flushSoon()
	return f
}

// Close shuts the bridge down. Pending calls and a pending root are
// rejected with reason (ErrClosed if nil), tracked objects are forgotten
// and later messages are ignored. Close is idempotent.
func (b *Bridge) Close(reason error) {
	if reason == nil {
		reason = ErrClosed
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.closeErr = reason
	b.sched.disarm()
	tracked := len(b.server.tracked)
	b.server.close()
	futures := b.client.close()
	b.mu.Unlock()

	b.metrics.objectsDelta(-tracked)
	b.metrics.bridgeClosed()
	for _, f := range futures {
		f.settle(nil, reason)
	}
	b.logger.Debug("bridge closed", "reason", reason)
}

// Closed reports whether the bridge has been closed.
func (b *Bridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Err returns the reason the bridge was closed, or nil while it is open.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}
