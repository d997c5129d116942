// Package gemini feeds reconcile sessions from Google Gemini streaming
// responses.
//
// It consumes the genai SDK's iter.Seq2 response iterator, pulling one chunk
// at a time. Function call arguments arrive already decoded and are applied
// as [reconcile.Decoded] fragments; the last matching call is the
// authoritative payload handed to Finish.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/fwojciec/reconcile"
	"google.golang.org/genai"
)

// ErrNoPayload is returned when the stream ended without any matching
// function call or text.
var ErrNoPayload = errors.New("gemini: stream carried no payload")

// Feed drives one session from a Gemini response stream.
type Feed struct {
	lc     reconcile.Lifecycle
	fn     string
	text   bool
	logger *slog.Logger
}

// Option configures a [Feed].
type Option func(*Feed)

// WithFunctionName restricts the feed to calls of the named function.
func WithFunctionName(name string) Option {
	return func(f *Feed) { f.fn = name }
}

// WithTextParts also applies non-thought text parts as text fragments.
func WithTextParts() Option {
	return func(f *Feed) { f.text = true }
}

// WithLogger sets the structured logger. Default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

// NewFeed creates a [Feed] driving sessions through lc.
func NewFeed(lc reconcile.Lifecycle, opts ...Option) *Feed {
	f := &Feed{
		lc:     lc,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Run starts a session and applies every chunk of seq to it. When the
// iterator is exhausted the session is finished with the last matching
// function call's arguments, or with the accumulated text when only text
// parts were seen. An iterator error or a canceled context stops the run and
// leaves the session unfinished; a Finish error is returned as is.
func (f *Feed) Run(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) (*reconcile.Session, error) {
	next, stop := iter.Pull2(seq)
	defer stop()

	s := f.lc.Start(ctx, nil)
	var final reconcile.Fragment
	var sawText bool
	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		resp, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			return s, fmt.Errorf("gemini: %w", err)
		}
		for _, part := range parts(resp) {
			switch {
			case part.FunctionCall != nil:
				fc := part.FunctionCall
				if f.fn != "" && fc.Name != f.fn {
					continue
				}
				d := reconcile.Decoded{Value: fc.Args}
				if d.Value == nil {
					d.Value = map[string]any{}
				}
				f.lc.Delta(ctx, s, d)
				final = d
			case f.text && part.Text != "" && !part.Thought:
				f.lc.Delta(ctx, s, reconcile.Text{Chunk: part.Text})
				sawText = true
			}
		}
	}

	if final == nil && !sawText {
		return s, ErrNoPayload
	}
	if err := f.lc.Finish(ctx, s, final); err != nil {
		f.logger.Warn("gemini.payload.rejected",
			slog.String("sessionId", s.ID),
			slog.String("error", err.Error()),
		)
		return s, err
	}
	return s, nil
}

// parts returns the parts of the first candidate, or nil.
func parts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	out := make([]*genai.Part, 0, len(c.Content.Parts))
	for _, p := range c.Content.Parts {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// DecodeNDJSON returns an iterator over responses stored one JSON object per
// line, as captured from a streaming call. Blank lines are skipped. Decoding
// stops at the first malformed line, which is yielded as an error.
func DecodeNDJSON(r io.Reader) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			b := bytes.TrimSpace(scanner.Bytes())
			if len(b) == 0 {
				continue
			}
			var resp genai.GenerateContentResponse
			if err := json.Unmarshal(b, &resp); err != nil {
				yield(nil, fmt.Errorf("ndjson line %d: %w", line, err))
				return
			}
			if !yield(&resp, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("read ndjson: %w", err))
		}
	}
}
