package recommend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/connsolve/internal/domain"
	"github.com/ashureev/connsolve/internal/session"
	"github.com/ashureev/connsolve/internal/strategy"
	"github.com/ashureev/connsolve/internal/strategy/heuristic"
	"github.com/ashureev/connsolve/internal/strategy/openai"
	"github.com/google/go-cmp/cmp"
)

type fakeStrategy struct {
	name  string
	resp  strategy.Response
	err   error
	block bool
	got   strategy.Request
	calls int

	// blockErr, when set, is returned instead of ctx.Err() after blocking.
	blockErr error
}

func (f *fakeStrategy) Name() string  { return f.name }
func (f *fakeStrategy) Model() string { return "fake-model" }

func (f *fakeStrategy) Generate(ctx context.Context, req strategy.Request) (strategy.Response, error) {
	f.calls++
	f.got = req
	if f.block {
		<-ctx.Done()
		if f.blockErr != nil {
			return strategy.Response{}, f.blockErr
		}
		return strategy.Response{}, ctx.Err()
	}
	return f.resp, f.err
}

func goodCandidate(words ...string) *domain.Candidate {
	return &domain.Candidate{
		Words:       words,
		Explanation: "All four are kinds of fish found in rivers.",
		Confidence:  domain.Float(0.8),
	}
}

var board = []string{
	"bass", "flounder", "salmon", "trout",
	"piano", "guitar", "drum", "flute",
	"red", "blue", "green", "yellow",
	"apple", "pear", "plum", "grape",
}

type fixture struct {
	store *session.Store
	reg   *strategy.Registry
	orch  *Orchestrator
	fake  *fakeStrategy
}

func newFixture(t *testing.T, opts session.Options) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Logger = logger

	f := &fixture{
		store: session.NewStore(opts),
		reg:   strategy.NewRegistry(),
		fake:  &fakeStrategy{name: "fake", resp: strategy.Response{Candidate: goodCandidate("bass", "flounder", "salmon", "trout")}},
	}
	f.reg.RegisterStrategy(f.fake)
	f.orch = New(Config{
		Sessions:        f.store,
		Strategies:      f.reg,
		DefaultStrategy: "fake",
		Logger:          logger,
	})
	return f
}

func TestRecommend_UsesAuthoritativeSessionWords(t *testing.T) {
	f := newFixture(t, session.Options{})
	sess, err := f.store.Create(board)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.store.RecordAttempt(sess.ID, session.AttemptInput{
		Words:   []string{"red", "blue", "green", "yellow"},
		Outcome: domain.OutcomeCorrect,
	}); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}

	res, err := f.orch.Recommend(context.Background(), Request{
		SessionID: sess.ID,
		Words:     []string{"stale", "client", "view", "of", "board"},
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	want, _ := f.store.RemainingWords(sess.ID)
	if diff := cmp.Diff(want, f.fake.got.Words); diff != "" {
		t.Errorf("Strategy saw wrong words (-want +got):\n%s", diff)
	}
	if len(f.fake.got.Attempts) != 1 {
		t.Errorf("Expected session attempts to be forwarded, got %d", len(f.fake.got.Attempts))
	}
	if res.SessionID != sess.ID {
		t.Errorf("Expected session id %s, got %s", sess.ID, res.SessionID)
	}

	got, _ := f.store.Get(sess.ID)
	if diff := cmp.Diff([]string{"bass", "flounder", "salmon", "trout"}, got.LastRecommendation); diff != "" {
		t.Errorf("LastRecommendation mismatch (-want +got):\n%s", diff)
	}
	if got.Provenance == nil || got.Provenance.Strategy != "fake" || got.Provenance.Model != "fake-model" {
		t.Errorf("Unexpected provenance %+v", got.Provenance)
	}
}

func TestRecommend_LatestSessionShortcut(t *testing.T) {
	f := newFixture(t, session.Options{AllowLatest: true})
	sess, err := f.store.Create(board)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	res, err := f.orch.Recommend(context.Background(), Request{Words: []string{"a", "b", "c", "d"}})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if res.SessionID != sess.ID {
		t.Errorf("Expected latest session %s, got %q", sess.ID, res.SessionID)
	}
	if len(f.fake.got.Words) != domain.PuzzleSize {
		t.Errorf("Expected 16 authoritative words, got %v", f.fake.got.Words)
	}
}

func TestRecommend_SessionlessUsesClientWords(t *testing.T) {
	f := newFixture(t, session.Options{})
	if _, err := f.store.Create(board); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	res, err := f.orch.Recommend(context.Background(), Request{Words: []string{"Bass", "Flounder", "Salmon", "Trout", "Piano"}})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if diff := cmp.Diff([]string{"bass", "flounder", "salmon", "trout", "piano"}, f.fake.got.Words); diff != "" {
		t.Errorf("Words mismatch (-want +got):\n%s", diff)
	}
	if res.SessionID != "" {
		t.Errorf("Expected no session, got %s", res.SessionID)
	}
}

func TestRecommend_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		req   Request
		want  domain.Code
	}{
		{
			name: "insufficient words",
			req:  Request{Words: []string{"a", "b", "c"}},
			want: domain.CodeInsufficientWords,
		},
		{
			name: "duplicate words",
			req:  Request{Words: []string{"a", "b", "c", "A"}},
			want: domain.CodeInvalidInput,
		},
		{
			name: "unknown session",
			req:  Request{SessionID: "missing", Words: board},
			want: domain.CodeSessionNotFound,
		},
		{
			name: "unknown strategy",
			req:  Request{StrategyID: "nope", Words: board},
			want: domain.CodeStrategyUnavailable,
		},
		{
			name: "unbuildable strategy",
			setup: func(f *fixture) {
				f.reg.Register("broken", func() (strategy.Strategy, error) { return nil, errors.New("no key") })
			},
			req:  Request{StrategyID: "broken", Words: board},
			want: domain.CodeStrategyUnavailable,
		},
		{
			name:  "strategy failure",
			setup: func(f *fixture) { f.fake.err = io.ErrUnexpectedEOF },
			req:   Request{Words: board},
			want:  domain.CodeStrategyFailure,
		},
		{
			name:  "structured strategy error passes through",
			setup: func(f *fixture) { f.fake.err = domain.MalformedResponse("fake", "bad json") },
			req:   Request{Words: board},
			want:  domain.CodeMalformedResponse,
		},
		{
			name:  "undecodable answer",
			setup: func(f *fixture) { f.fake.err = fmt.Errorf("fake: decode content: %w", strategy.ErrMalformed) },
			req:   Request{Words: board},
			want:  domain.CodeMalformedResponse,
		},
		{
			name:  "malformed payload",
			setup: func(f *fixture) { f.fake.resp = strategy.Response{Payload: map[string]any{"answer": "fish"}} },
			req:   Request{Words: board},
			want:  domain.CodeMalformedResponse,
		},
		{
			name:  "empty response",
			setup: func(f *fixture) { f.fake.resp = strategy.Response{} },
			req:   Request{Words: board},
			want:  domain.CodeMalformedResponse,
		},
		{
			name:  "critical validation failure",
			setup: func(f *fixture) { f.fake.resp = strategy.Response{Candidate: goodCandidate("bass", "flounder", "salmon")} },
			req:   Request{Words: board},
			want:  domain.CodeValidationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, session.Options{})
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.orch.Recommend(context.Background(), tt.req)
			if code := domain.CodeOf(err); code != tt.want {
				t.Errorf("Expected code %s, got %s (%v)", tt.want, code, err)
			}
		})
	}
}

func TestRecommend_StrategyFailureCarriesCause(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.fake.err = fmt.Errorf("dial: %w", io.ErrUnexpectedEOF)

	_, err := f.orch.Recommend(context.Background(), Request{Words: board})
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("Expected *domain.Error, got %T", err)
	}
	if de.Strategy != "fake" || de.CauseType != "*fmt.wrapError" {
		t.Errorf("Unexpected failure details %+v", de)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Expected original cause to be unwrappable")
	}
}

func TestRecommend_UnavailableListsAvailable(t *testing.T) {
	f := newFixture(t, session.Options{})
	_, err := f.orch.Recommend(context.Background(), Request{StrategyID: "nope", Words: board})

	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("Expected *domain.Error, got %T", err)
	}
	if diff := cmp.Diff([]string{"fake"}, de.Available); diff != "" {
		t.Errorf("Available mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommend_ValidationFailureKeepsCandidate(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.fake.resp = strategy.Response{Candidate: goodCandidate("bass", "bass", "salmon", "trout")}

	_, err := f.orch.Recommend(context.Background(), Request{Words: board})
	var de *domain.Error
	if !errors.As(err, &de) || de.Code != domain.CodeValidationFailed {
		t.Fatalf("Expected validation failure, got %v", err)
	}
	if diff := cmp.Diff([]string{"word_uniqueness"}, de.Rules); diff != "" {
		t.Errorf("Rules mismatch (-want +got):\n%s", diff)
	}
	if de.Candidate == nil || len(de.Candidate.Words) != 4 {
		t.Errorf("Expected original candidate for diagnostics, got %+v", de.Candidate)
	}
}

func TestRecommend_ProseAnswerFromOpenAIIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"fish, probably"}}]}`))
	}))
	defer srv.Close()

	f := newFixture(t, session.Options{})
	oa, err := openai.New(openai.Config{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("openai.New failed: %v", err)
	}
	f.reg.RegisterStrategy(oa)

	_, err = f.orch.Recommend(context.Background(), Request{StrategyID: openai.Name, Words: board})
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("Expected *domain.Error, got %v", err)
	}
	if de.Code != domain.CodeMalformedResponse {
		t.Errorf("Expected code %s, got %s (%v)", domain.CodeMalformedResponse, de.Code, err)
	}
	if de.Strategy != openai.Name {
		t.Errorf("Expected strategy %q, got %q", openai.Name, de.Strategy)
	}
}

func TestRecommend_DomainErrorAfterDeadlinePassesThrough(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.fake.block = true
	f.fake.blockErr = domain.MalformedResponse("fake", "cut short")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.orch.Recommend(ctx, Request{Words: board})
	if code := domain.CodeOf(err); code != domain.CodeMalformedResponse {
		t.Errorf("Expected code %s, got %s (%v)", domain.CodeMalformedResponse, code, err)
	}
}

func TestRecommend_Timeout(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.fake.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.orch.Recommend(ctx, Request{Words: board})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestRecommend_NormalizesPayload(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.fake.resp = strategy.Response{Payload: map[string]any{
		"recommendation":     []any{"bass", "flounder", "salmon", "trout"},
		"reasoning":          "All of these are fish that share a habitat.",
		"confidence_score":   "0.75",
		"generation_time_ms": 12.5,
	}}

	res, err := f.orch.Recommend(context.Background(), Request{Words: board})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	c := res.Candidate
	if c.Explanation != "All of these are fish that share a habitat." {
		t.Errorf("Unexpected explanation %q", c.Explanation)
	}
	if c.Confidence == nil || *c.Confidence != 0.75 {
		t.Errorf("Expected confidence 0.75, got %v", c.Confidence)
	}
	if c.LatencyMS == nil || *c.LatencyMS != 12.5 {
		t.Errorf("Expected latency 12.5, got %v", c.LatencyMS)
	}
	if c.Strategy != "fake" || c.Model != "fake-model" {
		t.Errorf("Expected provenance from strategy, got %s/%s", c.Strategy, c.Model)
	}
	if !res.Verdict.Valid {
		t.Errorf("Expected valid verdict, got %+v", res.Verdict)
	}
}

func TestRecommend_QualityShortfallPassesThrough(t *testing.T) {
	f := newFixture(t, session.Options{})
	words := append([]string{"b4ss", "p1ke", "c4rp", "3el"}, board[4:]...)
	sess, err := f.store.Create(words)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.store.RecordAttempt(sess.ID, session.AttemptInput{
		Words:   []string{"b4ss", "p1ke", "c4rp", "3el"},
		Outcome: domain.OutcomeIncorrect,
	}); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	f.fake.resp = strategy.Response{Candidate: &domain.Candidate{
		Words:      []string{"b4ss", "p1ke", "c4rp", "3el"},
		Confidence: domain.Float(7),
	}}

	res, err := f.orch.Recommend(context.Background(), Request{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if res.Verdict.Valid {
		t.Errorf("Expected the verdict to report the shortfall, got %+v", res.Verdict)
	}
	if res.Corrected {
		t.Error("Expected an unchanged candidate")
	}
	if res.Candidate.Explanation != "" {
		t.Errorf("Expected explanation untouched, got %q", res.Candidate.Explanation)
	}
}

func TestRecommend_WithHeuristic(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.reg.RegisterStrategy(heuristic.New(heuristic.Config{}))

	res, err := f.orch.Recommend(context.Background(), Request{
		StrategyID: heuristic.Name,
		Words:      []string{"bass", "flounder", "salmon", "trout", "piano", "guitar"},
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if !domain.SameWordSet(res.Candidate.Words, []string{"bass", "flounder", "salmon", "trout"}) {
		t.Errorf("Expected the fish group, got %v", res.Candidate.Words)
	}
}

func TestListStrategies(t *testing.T) {
	f := newFixture(t, session.Options{})
	f.reg.Register("broken", func() (strategy.Strategy, error) { return nil, errors.New("no key") })

	info := f.orch.ListStrategies()
	want := StrategyInfo{Default: "fake", Configured: []string{"fake", "broken"}, Available: []string{"fake"}}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("ListStrategies mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizePayload_WordShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    []string
		wantErr bool
	}{
		{"list", map[string]any{"words": []any{"a", "b"}}, []string{"a", "b"}, false},
		{"csv", map[string]any{"group": "a, b ,c"}, []string{"a", "b", "c"}, false},
		{"nested", map[string]any{"recommendation": map[string]any{"selection": []any{"x"}}}, []string{"x"}, false},
		{"non-string", map[string]any{"words": []any{"a", 3.0}}, nil, true},
		{"wrong type", map[string]any{"words": 42.0}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := normalizePayload("x", tt.payload)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMalformedResponse) {
					t.Errorf("Expected malformed response, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, c.Words); diff != "" {
				t.Errorf("Words mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
