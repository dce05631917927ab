package rounds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/events"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refusingGateway fails CreateRound for one language.
type refusingGateway struct {
	*gateway.Memory
	refuse string
}

func (g *refusingGateway) CreateRound(ctx context.Context, language string) error {
	if language == g.refuse {
		return errors.New("write rejected")
	}
	return g.Memory.CreateRound(ctx, language)
}

func TestRecordGroupsReadyPlayersByLanguage(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	gw := gateway.NewMemory(fc)
	rec := &events.Recorder{}
	r := NewRecorder(gw, fc, rec, logrus.New())

	langs, err := r.Record(ctx)
	require.NoError(t, err)
	assert.Empty(t, langs)

	for _, lang := range []string{"fr", "en", "fr"} {
		require.NoError(t, gw.AddPlayer(ctx, uuid.New(), lang))
	}
	langs, err = r.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, langs)

	rounds, err := gw.GetAllRounds(ctx)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "en", rounds[0].Language)
	assert.Len(t, rounds[0].Players, 1)
	assert.Equal(t, "fr", rounds[1].Language)
	assert.Len(t, rounds[1].Players, 2)
	assert.Len(t, rec.Events(events.RoundCreated), 2)
}

func TestRecordContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	gw := &refusingGateway{Memory: gateway.NewMemory(fc), refuse: "de"}
	r := NewRecorder(gw, fc, nil, logrus.New())

	require.NoError(t, gw.AddPlayer(ctx, uuid.New(), "de"))
	require.NoError(t, gw.AddPlayer(ctx, uuid.New(), "pt"))

	langs, err := r.Record(ctx)
	assert.Error(t, err)
	assert.Equal(t, []string{"pt"}, langs)
}

func TestRecorderFiresAtBoundary(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fc := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 20, 59, 59, 0, time.UTC))
	gw := gateway.NewMemory(fc)
	require.NoError(t, gw.AddPlayer(ctx, uuid.New(), "es"))

	r := NewRecorder(gw, fc, &events.Recorder{}, logrus.New())
	r.Start(ctx)
	defer r.Stop()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	assert.Equal(t, time.Date(2025, 5, 1, 21, 0, 0, 0, time.UTC), r.NextBoundary())

	require.Eventually(t, func() bool {
		rounds, _ := gw.GetAllRounds(ctx)
		if len(rounds) == 1 {
			return true
		}
		fc.Advance(time.Second)
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), r.NextBoundary())
}
