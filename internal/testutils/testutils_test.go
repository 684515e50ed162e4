package testutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytedge/pkg/edgetypes"
)

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, BaseTime, c.Now())
	assert.Equal(t, BaseTime.Add(time.Second), c.Now())
}

func TestIDSequence(t *testing.T) {
	s := NewIDSequence()
	assert.Equal(t, "brake_00000001-0000-4000-8000-000000000001", s.Next("brake"))

	s.Repeat = 1
	assert.Equal(t, "tire_00000001-0000-4000-8000-000000000001", s.Next("tire"))
	assert.Equal(t, "tire_00000002-0000-4000-8000-000000000002", s.Next("tire"))
}

func TestMockGenerator(t *testing.T) {
	ctx := context.Background()
	opts := edgetypes.DefaultGenerationOptions()
	m := NewMockGenerator()

	out, err := m.Generate(ctx, "sys\n\nCurrent User Question: why?\n\nAssistant Response:", opts)
	require.NoError(t, err)
	assert.Equal(t, "mock reply to: why?", out)

	m.SetResponses("first", "second")
	out, _ = m.Generate(ctx, "p", opts)
	assert.Equal(t, "first", out)
	out, _ = m.Generate(ctx, "p", opts)
	assert.Equal(t, "second", out)

	m.FailNext(1)
	_, err = m.Generate(ctx, "p", opts)
	assert.Error(t, err)

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Generate(ctx, "p", opts)
	assert.ErrorIs(t, err, boom)
	m.SetError(nil)

	assert.Equal(t, 5, m.CallCount())
	assert.Equal(t, "p", m.LastPrompt())
	assert.Equal(t, opts, m.Calls()[0].Options)
}

func TestMockGenerator_DelayHonoursContext(t *testing.T) {
	m := NewMockGenerator()
	m.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, "p", edgetypes.DefaultGenerationOptions())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
