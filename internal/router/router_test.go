package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"bytedge/internal/classifier"
	"bytedge/internal/registry"
	"bytedge/internal/session"
	"bytedge/internal/testutils"
	"bytedge/pkg/edgetypes"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	router *Router
	store  *session.MemoryStore
	gen    *testutils.MockGenerator
	ids    *testutils.IDSequence
}

func newFixture(t *testing.T, mutate func(*Settings)) *fixture {
	t.Helper()

	reg, err := registry.New(testutils.Profiles())
	require.NoError(t, err)

	store := session.NewMemoryStore(0)
	gen := testutils.NewMockGenerator()
	ids := testutils.NewIDSequence()

	settings := Settings{
		Now:          testutils.NewClock().Now,
		NewSessionID: ids.Next,
	}
	if mutate != nil {
		mutate(&settings)
	}

	r, err := New(reg, classifier.New(reg), store, gen, settings)
	require.NoError(t, err)

	return &fixture{router: r, store: store, gen: gen, ids: ids}
}

func TestNew_Defaults(t *testing.T) {
	f := newFixture(t, nil)
	s := f.router.Settings()

	assert.Equal(t, edgetypes.DefaultGenerationOptions(), s.Options)
	assert.Equal(t, "brake", s.FallbackAgent)
	assert.Equal(t, 6, s.ContextWindow)
	assert.Equal(t, DefaultTimeout, s.Timeout)
	assert.True(t, f.router.HasGenerator())
}

func TestNew_Validation(t *testing.T) {
	reg, err := registry.New(testutils.Profiles())
	require.NoError(t, err)
	store := session.NewMemoryStore(0)

	_, err = New(nil, nil, store, nil, Settings{})
	assert.Error(t, err)

	_, err = New(reg, nil, nil, nil, Settings{})
	assert.Error(t, err)

	_, err = New(reg, nil, store, nil, Settings{FallbackAgent: "clutch"})
	assert.ErrorIs(t, err, edgetypes.ErrUnknownAgent)
}

func TestRespond_ExplicitAgentNewSession(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.SetResponses("Inspect the pads for glazing.")

	resp, err := f.router.Respond(context.Background(), Request{Message: "  Why do my brakes squeal?  ", AgentID: "brake"})
	require.NoError(t, err)

	assert.Equal(t, "Inspect the pads for glazing.", resp.Text)
	assert.Equal(t, "brake", resp.AgentID)
	assert.Equal(t, "Brake Agent", resp.AgentName)
	assert.Equal(t, "brake_00000001-0000-4000-8000-000000000001", resp.SessionID)
	assert.Equal(t, testutils.BaseTime.Add(time.Second), resp.Timestamp)

	history := f.router.History(resp.SessionID)
	require.Len(t, history, 1)
	assert.Equal(t, "Why do my brakes squeal?", history[0].UserText)
	assert.Equal(t, "Inspect the pads for glazing.", history[0].AssistantText)
	assert.Equal(t, "brake", history[0].AgentID)
	assert.Equal(t, resp.Timestamp, history[0].Timestamp)

	calls := f.gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, edgetypes.DefaultGenerationOptions(), calls[0].Options)
	assert.Equal(t,
		"You are a brake expert.\n\nCurrent User Question: Why do my brakes squeal?\n\nAssistant Response:",
		calls[0].Prompt)
}

func TestRespond_AgentResolution(t *testing.T) {
	tests := []struct {
		name    string
		message string
		agent   string
		want    string
	}{
		{"classified by primary keyword", "My tire loses grip in the wet", "", "tire"},
		{"classified by best score", "engine piston and turbo, maybe the brake", "", "engine"},
		{"falls back when nothing matches", "Hello there", "", "brake"},
		{"explicit agent wins over classifier", "My tire loses grip", "engine", "engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			resp, err := f.router.Respond(context.Background(), Request{Message: tt.message, AgentID: tt.agent})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.AgentID)
			assert.True(t, strings.HasPrefix(resp.SessionID, tt.want+"_"), resp.SessionID)
		})
	}
}

func TestRespond_EmptyMessage(t *testing.T) {
	f := newFixture(t, nil)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.router.Respond(context.Background(), Request{Message: msg, AgentID: "brake", SessionID: "s1"})
		require.ErrorIs(t, err, edgetypes.ErrEmptyMessage)
		assert.True(t, edgetypes.IsClientError(err))
	}

	assert.Zero(t, f.gen.CallCount())
	assert.Zero(t, f.store.Len())
	assert.False(t, f.router.HasSession("s1"))
}

func TestRespond_UnknownAgent(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.router.Respond(context.Background(), Request{Message: "hi", AgentID: "suspension", SessionID: "s1"})
	require.ErrorIs(t, err, edgetypes.ErrUnknownAgent)
	assert.True(t, edgetypes.IsClientError(err))
	assert.Contains(t, err.Error(), "suspension")

	assert.Zero(t, f.gen.CallCount())
	assert.Zero(t, f.store.Len())
}

func TestRespond_GenerationFailureLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testutils.MockGenerator)
	}{
		{"provider error", func(g *testutils.MockGenerator) { g.SetError(errors.New("quota exceeded")) }},
		{"empty output", func(g *testutils.MockGenerator) { g.SetResponses("") }},
		{"whitespace output", func(g *testutils.MockGenerator) { g.SetResponses(" \n ") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()

			first, err := f.router.Respond(ctx, Request{Message: "first", AgentID: "brake", SessionID: "s1"})
			require.NoError(t, err)
			before := f.router.History("s1")

			tt.setup(f.gen)
			_, err = f.router.Respond(ctx, Request{Message: "second", AgentID: "brake", SessionID: "s1"})
			require.ErrorIs(t, err, edgetypes.ErrGenerationFailed)
			assert.False(t, edgetypes.IsClientError(err))

			var genErr *edgetypes.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.NotNil(t, genErr.Cause)

			assert.Equal(t, before, f.router.History("s1"))
			assert.Equal(t, "s1", first.SessionID)
			assert.Equal(t, 2, f.gen.CallCount(), "generation must not be retried")
		})
	}
}

func TestRespond_FailedFreshSessionIsNotCreated(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.SetError(errors.New("down"))

	_, err := f.router.Respond(context.Background(), Request{Message: "hi", AgentID: "tire"})
	require.ErrorIs(t, err, edgetypes.ErrGenerationFailed)
	assert.Zero(t, f.store.Len())
}

func TestRespond_Timeout(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.Timeout = 20 * time.Millisecond })
	f.gen.SetDelay(time.Second)

	start := time.Now()
	_, err := f.router.Respond(context.Background(), Request{Message: "slow", AgentID: "engine", SessionID: "s1"})
	require.ErrorIs(t, err, edgetypes.ErrGenerationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, f.router.HasSession("s1"))
}

func TestRespond_CallerCancellation(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.SetDelay(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.router.Respond(ctx, Request{Message: "hi", AgentID: "engine", SessionID: "s1"})
	require.ErrorIs(t, err, edgetypes.ErrGenerationFailed)
	assert.False(t, f.router.HasSession("s1"))
}

func TestRespond_LockWaitTimeout(t *testing.T) {
	f := newFixture(t, func(s *Settings) { s.Timeout = 20 * time.Millisecond })

	release, err := f.store.Acquire(context.Background(), "busy")
	require.NoError(t, err)
	defer release()

	_, err = f.router.Respond(context.Background(), Request{Message: "hi", AgentID: "brake", SessionID: "busy"})
	require.ErrorIs(t, err, edgetypes.ErrGenerationFailed)
	assert.Zero(t, f.gen.CallCount())
}

func TestRespond_RetentionKeepsNewestFifty(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 1; i <= 53; i++ {
		_, err := f.router.Respond(ctx, Request{Message: fmt.Sprintf("q%d", i), AgentID: "brake", SessionID: "s1"})
		require.NoError(t, err)
	}

	history := f.router.History("s1")
	require.Len(t, history, edgetypes.DefaultRetentionLimit)
	assert.Equal(t, "q4", history[0].UserText)
	assert.Equal(t, "q53", history[len(history)-1].UserText)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}
}

func TestRespond_ContextWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 1; i <= 8; i++ {
		_, err := f.router.Respond(ctx, Request{Message: fmt.Sprintf("q%d", i), AgentID: "brake", SessionID: "s1"})
		require.NoError(t, err)
	}
	_, err := f.router.Respond(ctx, Request{Message: "q9", AgentID: "brake", SessionID: "s1"})
	require.NoError(t, err)

	prompt := f.gen.LastPrompt()
	assert.Equal(t, 6, strings.Count(prompt, "Previous User: "))
	assert.NotContains(t, prompt, "Previous User: q2\n")
	assert.Contains(t, prompt, "Previous User: q3\n")
	assert.Contains(t, prompt, "Previous User: q8\nPrevious Assistant: mock reply to: q8")
	assert.Contains(t, prompt, "Current User Question: q9")
}

func TestRespond_SessionIsolation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.router.Respond(ctx, Request{Message: "secret about rotors", AgentID: "brake", SessionID: "a"})
	require.NoError(t, err)
	_, err = f.router.Respond(ctx, Request{Message: "hello", AgentID: "brake", SessionID: "b"})
	require.NoError(t, err)

	assert.NotContains(t, f.gen.LastPrompt(), "secret about rotors")
	assert.NotContains(t, f.gen.LastPrompt(), "Previous User:")
	assert.Len(t, f.router.History("a"), 1)
	assert.Len(t, f.router.History("b"), 1)
}

func TestRespond_AgentSwitchKeepsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.router.Respond(ctx, Request{Message: "pads?", AgentID: "brake", SessionID: "s1"})
	require.NoError(t, err)
	resp, err := f.router.Respond(ctx, Request{Message: "tread?", AgentID: "tire", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, "tire", resp.AgentID)
	assert.True(t, strings.HasPrefix(f.gen.LastPrompt(), "You are a tire expert."))
	assert.Contains(t, f.gen.LastPrompt(), "Previous User: pads?")

	history := f.router.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, "brake", history[0].AgentID)
	assert.Equal(t, "tire", history[1].AgentID)
}

func TestRespond_FreshSessionIDsAreUnique(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.router.Respond(ctx, Request{Message: "one", AgentID: "brake"})
	require.NoError(t, err)

	// The generator reissues the id already in use; the router must draw again.
	f.ids.Repeat = 2
	second, err := f.router.Respond(ctx, Request{Message: "two", AgentID: "brake"})
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Len(t, f.router.History(first.SessionID), 1)
	assert.Len(t, f.router.History(second.SessionID), 1)
}

func TestRespond_ConcurrentSameSessionIsSerialized(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.SetDelay(5 * time.Millisecond)

	const n = 12
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf("q%d", i)
		g.Go(func() error {
			_, err := f.router.Respond(ctx, Request{Message: msg, AgentID: "engine", SessionID: "shared"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, f.gen.MaxConcurrent())
	history := f.router.History("shared")
	assert.Len(t, history, n)

	// Each exchange saw exactly the turns recorded before it.
	for i, call := range f.gen.Calls() {
		want := i
		if want > 6 {
			want = 6
		}
		assert.Equal(t, want, strings.Count(call.Prompt, "Previous User: "), "call %d", i)
	}
}

func TestRespond_ConcurrentDistinctSessionsRunInParallel(t *testing.T) {
	f := newFixture(t, nil)
	f.gen.SetDelay(50 * time.Millisecond)

	const n = 6
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		g.Go(func() error {
			_, err := f.router.Respond(ctx, Request{Message: "question from " + id, AgentID: "tire", SessionID: id})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Greater(t, f.gen.MaxConcurrent(), 1)
	assert.Equal(t, n, f.store.Len())
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		history := f.router.History(id)
		require.Len(t, history, 1)
		assert.Equal(t, "question from "+id, history[0].UserText)
	}
}

func TestRespond_NoGenerator(t *testing.T) {
	reg, err := registry.New(testutils.Profiles())
	require.NoError(t, err)
	r, err := New(reg, nil, session.NewMemoryStore(0), nil, Settings{})
	require.NoError(t, err)
	assert.False(t, r.HasGenerator())

	_, err = r.Respond(context.Background(), Request{Message: "hi", AgentID: "brake"})
	assert.ErrorIs(t, err, edgetypes.ErrGenerationFailed)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.router.Respond(context.Background(), Request{Message: "q", AgentID: "brake", SessionID: "s1"})
	require.NoError(t, err)

	h := f.router.History("s1")
	h[0].UserText = "tampered"
	assert.Equal(t, "q", f.router.History("s1")[0].UserText)

	assert.Empty(t, f.router.History("missing"))
}
