package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_EnsureProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.profiles.EnsureProfile(ctx, h.alice))
	p, err := h.store.GetProfile(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	version := p.Version

	// unchanged names are not rewritten
	require.NoError(t, h.profiles.EnsureProfile(ctx, h.alice))
	p, err = h.store.GetProfile(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, version, p.Version)

	renamed := h.alice
	renamed.Name = "Alicia"
	require.NoError(t, h.profiles.EnsureProfile(ctx, renamed))
	p, err = h.store.GetProfile(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", p.Name)
}

func TestProfileService_Stats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty, err := h.profiles.Stats(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalGames)
	assert.NotNil(t, empty.Recent)

	for i := range 3 {
		roomID := fmt.Sprintf("game-%d", i)
		h.play(t, roomID)
		_, err := h.rooms.SubmitGuess(ctx, roomID, h.alice.ID, "489")
		require.NoError(t, err)
	}

	stats, err := h.profiles.Stats(ctx, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stats.Name)
	assert.Equal(t, 3, stats.TotalGames)
	assert.Equal(t, 3, stats.TotalWins)
	assert.Zero(t, stats.TotalLosses)
	require.Len(t, stats.Recent, 3)
	assert.Equal(t, "game-2", stats.Recent[0].RoomID)
	assert.Equal(t, "game-0", stats.Recent[2].RoomID)

	stats, err = h.profiles.Stats(ctx, h.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalLosses)
}

func TestProfileService_Matchup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	none, err := h.profiles.Matchup(ctx, h.alice.ID, h.bob.ID)
	require.NoError(t, err)
	assert.Zero(t, none.GamesPlayed)
	assert.Equal(t, domain.PairKey(h.alice.ID, h.bob.ID), none.Key)

	h.play(t, "h2h")
	_, err = h.rooms.SubmitGuess(ctx, "h2h", h.alice.ID, "489")
	require.NoError(t, err)

	mine, err := h.profiles.Matchup(ctx, h.alice.ID, h.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.GamesPlayed)
	assert.Equal(t, 1, mine.MyWins)
	assert.Zero(t, mine.OpponentWins)
	assert.Equal(t, "Bob", mine.Players[h.bob.ID.String()])

	theirs, err := h.profiles.Matchup(ctx, h.bob.ID, h.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, theirs.OpponentWins)
	assert.Equal(t, mine.Key, theirs.Key)
}
