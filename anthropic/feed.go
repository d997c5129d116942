package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fwojciec/reconcile"
)

// ErrUnexpectedEOF is returned when the event stream ends before message_stop.
var ErrUnexpectedEOF = errors.New("anthropic: unexpected end of stream")

// Result describes one content block that was fed into a session.
type Result struct {
	Index    int
	ToolID   string
	ToolName string
	Session  *reconcile.Session
	// Err is the error returned by Finish, e.g. a contract violation. It is
	// nil for blocks that were still open when the stream ended.
	Err error
}

// Feed reads an SSE stream and drives one session per matching block.
type Feed struct {
	lc       reconcile.Lifecycle
	tool     string
	text     bool
	logger   *slog.Logger
	maxEvent int
}

// Option configures a Feed.
type Option func(*Feed)

// WithToolName restricts the feed to tool_use blocks calling name.
func WithToolName(name string) Option {
	return func(f *Feed) { f.tool = name }
}

// WithTextBlocks also treats text blocks as streamed payloads.
func WithTextBlocks() Option {
	return func(f *Feed) { f.text = true }
}

// WithLogger sets the structured logger. Default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

// WithMaxEventSize sets the largest accepted SSE line in bytes.
func WithMaxEventSize(n int) Option {
	return func(f *Feed) { f.maxEvent = n }
}

// NewFeed creates a Feed driving sessions through lc.
func NewFeed(lc reconcile.Lifecycle, opts ...Option) *Feed {
	f := &Feed{
		lc:       lc,
		logger:   slog.New(slog.DiscardHandler),
		maxEvent: 1024 * 1024,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Run consumes the event stream in r until message_stop. It returns one
// Result per matching block in start order. A stream error stops the run;
// the results gathered so far are returned with it and sessions that were
// still open are left unfinished.
func (f *Feed) Run(ctx context.Context, r io.Reader) ([]Result, error) {
	run := &feedRun{
		feed:    f,
		ctx:     ctx,
		scanner: bufio.NewScanner(r),
		open:    make(map[int]int),
	}
	run.scanner.Buffer(make([]byte, 0, min(64*1024, f.maxEvent)), f.maxEvent)
	err := run.loop()
	return run.results, err
}

// feedRun is the state of one Run call.
type feedRun struct {
	feed    *Feed
	ctx     context.Context
	scanner *bufio.Scanner
	results []Result
	// open maps a block index to its position in results.
	open map[int]int
}

func (r *feedRun) loop() error {
	for {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		eventType, data, err := r.readSSEEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrUnexpectedEOF
			}
			return err
		}
		done, err := r.processEvent(eventType, data)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (r *feedRun) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		}
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := r.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("anthropic: %w", err)
	}

	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent applies one SSE event. It reports true on message_stop.
func (r *feedRun) processEvent(eventType, data string) (bool, error) {
	switch eventType {
	case "content_block_start":
		return false, r.handleContentBlockStart(data)
	case "content_block_delta":
		return false, r.handleContentBlockDelta(data)
	case "content_block_stop":
		return false, r.handleContentBlockStop(data)
	case "message_stop":
		return true, nil
	case "error":
		return false, r.handleError(data)
	default:
		// message_start, message_delta, ping and unknown event types.
		return false, nil
	}
}

func (r *feedRun) handleContentBlockStart(data string) error {
	var evt sseContentBlockStart
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse content_block_start: %w", err)
	}
	if !r.matches(evt.ContentBlock) {
		return nil
	}
	s := r.feed.lc.Start(r.ctx, nil)
	r.open[evt.Index] = len(r.results)
	r.results = append(r.results, Result{
		Index:    evt.Index,
		ToolID:   evt.ContentBlock.ID,
		ToolName: evt.ContentBlock.Name,
		Session:  s,
	})
	r.feed.logger.Debug("anthropic.block.started",
		slog.String("sessionId", s.ID),
		slog.Int("index", evt.Index),
		slog.String("type", evt.ContentBlock.Type),
		slog.String("tool", evt.ContentBlock.Name),
	)
	if evt.ContentBlock.Type == "text" && evt.ContentBlock.Text != "" {
		r.feed.lc.Delta(r.ctx, s, reconcile.Text{Chunk: evt.ContentBlock.Text})
	}
	return nil
}

func (r *feedRun) matches(b sseContentBlock) bool {
	switch b.Type {
	case "tool_use":
		return r.feed.tool == "" || r.feed.tool == b.Name
	case "text":
		return r.feed.text
	default:
		return false
	}
}

func (r *feedRun) handleContentBlockDelta(data string) error {
	var evt sseContentBlockDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse content_block_delta: %w", err)
	}
	pos, ok := r.open[evt.Index]
	if !ok {
		return nil
	}
	var chunk string
	switch evt.Delta.Type {
	case "input_json_delta":
		chunk = evt.Delta.PartialJSON
	case "text_delta":
		chunk = evt.Delta.Text
	default:
		return nil
	}
	r.feed.lc.Delta(r.ctx, r.results[pos].Session, reconcile.Text{Chunk: chunk})
	return nil
}

func (r *feedRun) handleContentBlockStop(data string) error {
	var evt sseContentBlockStop
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse content_block_stop: %w", err)
	}
	pos, ok := r.open[evt.Index]
	if !ok {
		return nil
	}
	delete(r.open, evt.Index)
	res := &r.results[pos]
	res.Err = r.feed.lc.Finish(r.ctx, res.Session, nil)
	if res.Err != nil {
		r.feed.logger.Warn("anthropic.block.rejected",
			slog.String("sessionId", res.Session.ID),
			slog.Int("index", evt.Index),
			slog.String("error", res.Err.Error()),
		)
	}
	return nil
}

func (r *feedRun) handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse error event: %w", err)
	}
	return fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
}
