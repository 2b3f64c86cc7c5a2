package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caseline/messenger-intake/pkg/util/errorutil"
)

type stubAsker struct {
	reply string
	err   error
	calls int
}

func (s *stubAsker) Ask(_ context.Context, _, _ string, _ int) (string, error) {
	s.calls++
	return s.reply, s.err
}

func unavailable() error {
	return errorutil.NewUpstreamUnavailable("anthropic", errors.New("timeout"))
}

func TestInterpretAgePrefersModelAnswer(t *testing.T) {
	p := NewProcessor(&stubAsker{reply: "5.5"}, zap.NewNop())

	age, err := p.InterpretAge(context.Background(), "five and a half")
	require.NoError(t, err)
	require.NotNil(t, age)
	assert.InDelta(t, 5.5, *age, 0.001)
}

func TestInterpretAgeFallsBackToPatterns(t *testing.T) {
	p := NewProcessor(&stubAsker{err: unavailable()}, zap.NewNop())

	age, err := p.InterpretAge(context.Background(), "she just turned 4")
	require.NoError(t, err)
	require.NotNil(t, age)
	assert.InDelta(t, 4, *age, 0.001)
}

func TestInterpretAgeUpstreamExhausted(t *testing.T) {
	p := NewProcessor(&stubAsker{err: unavailable()}, zap.NewNop())

	age, err := p.InterpretAge(context.Background(), "hmm let me think")
	assert.Nil(t, age)
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
}

func TestInterpretAgeUnusableModelReplyWithoutFailure(t *testing.T) {
	// A healthy model saying "unknown" means re-ask, not an outage.
	p := NewProcessor(&stubAsker{reply: "unknown"}, zap.NewNop())

	age, err := p.InterpretAge(context.Background(), "hmm let me think")
	assert.Nil(t, age)
	assert.NoError(t, err)
}

func TestInterpretPregnancyDetailsParsesModelJSON(t *testing.T) {
	p := NewProcessor(&stubAsker{reply: `{"weeks": 34, "difficult_delivery": true}`}, zap.NewNop())

	details, err := p.InterpretPregnancyDetails(context.Background(), "34 weeks, emergency c-section")
	require.NoError(t, err)
	require.NotNil(t, details.Weeks)
	assert.Equal(t, 34, *details.Weeks)
	assert.True(t, details.DifficultDelivery)
}

func TestInterpretYesNoQuickRepliesSkipModel(t *testing.T) {
	asker := &stubAsker{}
	p := NewProcessor(asker, zap.NewNop())

	yes, err := p.InterpretYesNo(context.Background(), "yes", "")
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := p.InterpretYesNo(context.Background(), "nope", "")
	require.NoError(t, err)
	assert.False(t, no)

	assert.Zero(t, asker.calls)
}

func TestInterpretYesNoMilestonesNormalOverride(t *testing.T) {
	p := NewProcessor(&stubAsker{reply: "yes"}, zap.NewNop())

	yes, err := p.InterpretYesNo(context.Background(), "he is meeting milestones just fine", "Is the child missing developmental milestones")
	require.NoError(t, err)
	assert.False(t, yes)
}

func TestInterpretYesNoFallsBackOnModelFailure(t *testing.T) {
	p := NewProcessor(&stubAsker{err: unavailable()}, zap.NewNop())

	yes, err := p.InterpretYesNo(context.Background(), "the doctor said we had to", "")
	require.NoError(t, err)
	assert.True(t, yes)
}

func TestInterpretDurationUpstreamExhausted(t *testing.T) {
	p := NewProcessor(&stubAsker{err: unavailable()}, zap.NewNop())

	days, err := p.InterpretDuration(context.Background(), "not sure at all")
	assert.Zero(t, days)
	require.Error(t, err)
	assert.True(t, errorutil.IsCode(err, errorutil.CodeUpstreamUnavailable))
}

func TestInterpretStateModelUnknownFallsBack(t *testing.T) {
	p := NewProcessor(&stubAsker{reply: "unknown"}, zap.NewNop())

	state, err := p.InterpretState(context.Background(), "we're in TX")
	require.NoError(t, err)
	assert.Equal(t, "Texas", state)
}
