package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Controller drives the start → delta → finish lifecycle of sessions. It holds
// no per-session state: everything a session accumulates lives on the
// Session value, so one Controller may serve any number of independent
// sessions concurrently as long as each session is driven sequentially.
type Controller struct {
	parser     Parser
	sink       Sink
	validator  Validator
	logger     *slog.Logger
	schema     Schema
	reconciler Reconciler
	now        func() time.Time
	newID      func() string
}

// Lifecycle is the session-driving surface of a Controller. Transports that
// feed sessions depend on it rather than on *Controller.
type Lifecycle interface {
	Start(ctx context.Context, initial Fragment) *Session
	Delta(ctx context.Context, s *Session, f Fragment)
	Finish(ctx context.Context, s *Session, final Fragment) error
}

// Interface compliance check.
var _ Lifecycle = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the sink that receives progress snapshots.
func WithSink(s Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithLogger sets the structured logger. Default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSchema sets the schema used to locate items. Default is DefaultSchema.
func WithSchema(s Schema) Option {
	return func(c *Controller) { c.schema = s }
}

// WithValidator sets the validator applied to authoritative payloads in
// Finish. Without one, Finish applies ValidateFinal.
func WithValidator(v Validator) Option {
	return func(c *Controller) { c.validator = v }
}

// WithClock overrides time.Now. Useful for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// NewController creates a Controller that parses text fragments with parser.
func NewController(parser Parser, opts ...Option) *Controller {
	c := &Controller{
		parser: parser,
		logger: slog.New(slog.DiscardHandler),
		schema: DefaultSchema(),
		now:    time.Now,
		newID:  newSessionID,
	}
	for _, o := range opts {
		o(c)
	}
	c.reconciler = Reconciler{InitialVersion: c.schema.InitialVersion}
	return c
}

// newSessionID returns a time-ordered UUID; the random tail keeps ids unique
// across sessions created within the same millisecond.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Start creates a session, seeds its items from initial (which may be nil)
// and issues a best-effort created notification.
func (c *Controller) Start(ctx context.Context, initial Fragment) *Session {
	now := c.now()
	s := &Session{
		ID:        c.newID(),
		Kind:      c.schema.Kind,
		CreatedAt: now,
		UpdatedAt: now,
		state:     SessionStarted,
	}
	if initial != nil {
		c.apply(s, initial)
	}
	c.logger.Info("stream.session.started",
		slog.String("sessionId", s.ID),
		slog.Int("itemCount", len(s.Items())),
	)
	c.notify(ctx, s, PhaseCreated)
	return s
}

// Delta merges one fragment into the session. It never fails: unparseable
// text leaves the items unchanged until more text arrives, and sink failures
// are logged and swallowed. A delta on a session that is not started is
// logged and ignored.
func (c *Controller) Delta(ctx context.Context, s *Session, f Fragment) {
	if s.state != SessionStarted {
		c.logger.Warn("stream.delta.ignored",
			slog.String("sessionId", s.ID),
			slog.String("state", s.state.String()),
		)
		return
	}
	c.apply(s, f)
	s.UpdatedAt = c.now()

	items := s.Items()
	done := countDone(items)
	if done > 0 {
		c.notify(ctx, s, PhaseProgress)
	}
	c.logger.Info("stream.delta.processed",
		slog.String("sessionId", s.ID),
		slog.Int("itemCount", len(items)),
		slog.Int("processedCount", done),
		slog.Time("timestamp", s.UpdatedAt),
	)
}

// Finish applies the authoritative payload. A nil final uses the text
// accumulated so far. The payload must be a complete document of the
// expected shape; otherwise Finish returns an error wrapping
// ErrContractViolation and the session stays open. On success the items are
// rebuilt from the payload, the session becomes terminal, and a loading
// notification is issued.
func (c *Controller) Finish(ctx context.Context, s *Session, final Fragment) error {
	switch s.state {
	case SessionIdle:
		return ErrSessionNotStarted
	case SessionFinished:
		return ErrSessionFinished
	}
	tree, err := c.decodeFinal(s, final)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", s.ID, err)
	}
	s.slots = c.reconciler.MergeFinish(s.slots, ExtractFragments(tree, "", c.schema))
	s.snapshot = tree
	s.open = ""
	s.state = SessionFinished
	s.UpdatedAt = c.now()
	c.logger.Info("stream.session.finished",
		slog.String("sessionId", s.ID),
		slog.Int("itemCount", len(s.Items())),
	)
	c.notify(ctx, s, PhaseLoading)
	return nil
}

// apply dispatches a fragment and merges whatever it reveals.
func (c *Controller) apply(s *Session, f Fragment) {
	switch f := f.(type) {
	case Text:
		s.text.WriteString(f.Chunk)
		res := c.parser.Parse(s.text.String())
		tree := res.Value
		if tree == nil {
			tree = collectionTree(res.Extracted, c.schema.CollectionPath)
		}
		if tree == nil {
			return
		}
		s.snapshot = tree
		s.open = res.Open
	case Decoded:
		tree, err := normalize(f.Value)
		if err != nil {
			c.logger.Warn("stream.fragment.skipped",
				slog.String("sessionId", s.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		s.snapshot = tree
		s.open = ""
	default:
		return
	}
	s.slots = c.reconciler.MergeDelta(s.slots, ExtractFragments(s.snapshot, s.open, c.schema))
}

func (c *Controller) decodeFinal(s *Session, final Fragment) (any, error) {
	var raw []byte
	switch f := final.(type) {
	case nil:
		raw = []byte(s.Text())
	case Text:
		raw = []byte(f.Chunk)
	case Decoded:
		b, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: encode payload: %w", ErrContractViolation, err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("%w: unknown fragment type %T", ErrContractViolation, final)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("%w: payload is not a complete document: %w", ErrContractViolation, err)
	}
	if c.validator != nil {
		if err := c.validator.Validate(raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrContractViolation, err)
		}
		return tree, nil
	}
	if err := ValidateFinal(tree, c.schema); err != nil {
		return nil, err
	}
	return tree, nil
}

// notify upserts a fresh snapshot. Sink failures, including panics, are
// logged with the session id and never reach the caller.
func (c *Controller) notify(ctx context.Context, s *Session, phase Phase) {
	if c.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("stream.sink.error",
				slog.String("sessionId", s.ID),
				slog.String("phase", string(phase)),
				slog.String("error", fmt.Sprintf("panic: %v", r)),
			)
		}
	}()
	if err := c.sink.Upsert(ctx, s.ID, s.Progress(phase)); err != nil {
		c.logger.Error("stream.sink.error",
			slog.String("sessionId", s.ID),
			slog.String("phase", string(phase)),
			slog.String("error", err.Error()),
		)
	}
}

// normalize round-trips a decoded value through JSON so that trees from
// Decoded fragments have the same shape as parsed ones, and so that later
// mutation of the caller's map cannot reach the session.
func normalize(v map[string]any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("decoded fragment is nil")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// collectionTree rebuilds a minimal tree holding only the collection, for
// parse results that recovered extracted values but no tree.
func collectionTree(extracted map[string]any, path string) any {
	v, ok := extracted[path]
	if !ok {
		return nil
	}
	segs := strings.Split(path, ".")
	var tree any = v
	for i := len(segs) - 1; i >= 0; i-- {
		tree = map[string]any{segs[i]: tree}
	}
	return tree
}
