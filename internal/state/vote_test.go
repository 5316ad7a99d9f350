package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/config"
)

func testBallot(t *testing.T) *ballot.Ballot {
	t.Helper()
	b, err := ballot.Default()
	require.NoError(t, err)
	return b
}

func TestBoardSaveLifecycle(t *testing.T) {
	board := NewBoard(testBallot(t), config.VotePolicyLocked, false)

	_, err := board.BeginSave("zavoz_goda")
	assert.ErrorIs(t, err, ErrNothingSelected)

	require.NoError(t, board.Select("zavoz_goda", "iris"))
	require.NoError(t, board.Select("zavoz_goda", "sab"), "selection can change before saving")
	v, _ := board.Get("zavoz_goda")
	assert.Equal(t, VoteSelected, v.Status)
	assert.True(t, v.CanSave())

	cand, err := board.BeginSave("zavoz_goda")
	require.NoError(t, err)
	assert.Equal(t, "sab", cand)
	assert.False(t, board.CanSelect("zavoz_goda"))
	assert.ErrorIs(t, board.Select("zavoz_goda", "iris"), ErrBusy)
	_, err = board.BeginSave("zavoz_goda")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, board.SaveSucceeded("zavoz_goda"))
	v, _ = board.Get("zavoz_goda")
	assert.Equal(t, VoteLocked, v.Status)
	assert.Equal(t, "sab", v.Saved)
	assert.False(t, v.CanSave())
	assert.ErrorIs(t, board.Select("zavoz_goda", "iris"), ErrVoteLocked)
	assert.ErrorIs(t, board.SaveSucceeded("zavoz_goda"), ErrUnexpectedResult)
}

func TestBoardSaveFailedKeepsSelection(t *testing.T) {
	board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
	require.NoError(t, board.Select("zavoz_goda", "blur"))
	_, err := board.BeginSave("zavoz_goda")
	require.NoError(t, err)

	require.NoError(t, board.SaveFailed("zavoz_goda"))
	v, _ := board.Get("zavoz_goda")
	assert.Equal(t, VoteSelected, v.Status)
	assert.Equal(t, "blur", v.Selected)
	assert.Empty(t, v.Saved)
}

func TestBoardChangeablePolicy(t *testing.T) {
	board := NewBoard(testBallot(t), config.VotePolicyChangeable, false)
	require.NoError(t, board.Select("zavoz_goda", "iris"))
	_, err := board.BeginSave("zavoz_goda")
	require.NoError(t, err)
	require.NoError(t, board.SaveSucceeded("zavoz_goda"))

	assert.True(t, board.CanSelect("zavoz_goda"))
	require.NoError(t, board.Select("zavoz_goda", "tulpa"))
	v, _ := board.Get("zavoz_goda")
	assert.Equal(t, VoteSelected, v.Status)
	assert.Equal(t, "iris", v.Saved)

	require.NoError(t, board.Select("zavoz_goda", "iris"), "returning to the saved candidate")
	v, _ = board.Get("zavoz_goda")
	assert.Equal(t, VoteLocked, v.Status)
}

func TestBoardUnvote(t *testing.T) {
	disabled := NewBoard(testBallot(t), config.VotePolicyLocked, false)
	assert.ErrorIs(t, disabled.BeginUnvote("zavoz_goda"), ErrUnvoteDisabled)

	board := NewBoard(testBallot(t), config.VotePolicyLocked, true)
	assert.ErrorIs(t, board.BeginUnvote("zavoz_goda"), ErrNotLocked)
	board.Reconcile(map[string]string{"zavoz_goda": "iris"})
	assert.True(t, board.CanUnvote("zavoz_goda"))

	require.NoError(t, board.BeginUnvote("zavoz_goda"))
	assert.False(t, board.CanUnvote("zavoz_goda"))
	require.NoError(t, board.UnvoteFailed("zavoz_goda"))
	v, _ := board.Get("zavoz_goda")
	assert.Equal(t, VoteLocked, v.Status)

	require.NoError(t, board.BeginUnvote("zavoz_goda"))
	require.NoError(t, board.UnvoteSucceeded("zavoz_goda"))
	v, _ = board.Get("zavoz_goda")
	assert.Equal(t, NominationVote{NominationID: "zavoz_goda", Status: VoteNone}, v)
}

func TestBoardUnknownIDs(t *testing.T) {
	board := NewBoard(testBallot(t), config.VotePolicyLocked, true)
	assert.ErrorIs(t, board.Select("missing", "iris"), ErrUnknownNomination)
	assert.ErrorIs(t, board.Select("zavoz_goda", "missing"), ErrUnknownCandidate)
	_, err := board.BeginSave("missing")
	assert.ErrorIs(t, err, ErrUnknownNomination)
	assert.ErrorIs(t, board.BeginUnvote("missing"), ErrUnknownNomination)
	assert.ErrorIs(t, board.SaveFailed("missing"), ErrUnknownNomination)
}

func TestBoardReconcile(t *testing.T) {
	t.Run("server vote locks nomination", func(t *testing.T) {
		board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
		require.NoError(t, board.Select("zavoz_goda", "blur"))

		dropped := board.Reconcile(map[string]string{"zavoz_goda": "iris", "old": "x", "zavoz_goda_2": "y"})
		assert.Equal(t, []string{"old", "zavoz_goda_2"}, dropped)
		v, _ := board.Get("zavoz_goda")
		assert.Equal(t, VoteLocked, v.Status)
		assert.Equal(t, "iris", v.Selected)
	})

	t.Run("changeable keeps pending selection", func(t *testing.T) {
		board := NewBoard(testBallot(t), config.VotePolicyChangeable, false)
		require.NoError(t, board.Select("zavoz_goda", "blur"))
		board.Reconcile(map[string]string{"zavoz_goda": "iris"})
		v, _ := board.Get("zavoz_goda")
		assert.Equal(t, VoteSelected, v.Status)
		assert.Equal(t, "blur", v.Selected)
		assert.Equal(t, "iris", v.Saved)
	})

	t.Run("missing server vote unlocks", func(t *testing.T) {
		board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
		board.Reconcile(map[string]string{"zavoz_goda": "iris"})
		board.Reconcile(map[string]string{})
		v, _ := board.Get("zavoz_goda")
		assert.Equal(t, VoteNone, v.Status)
		assert.Empty(t, v.Selected)
	})

	t.Run("in-flight request is untouched", func(t *testing.T) {
		board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
		require.NoError(t, board.Select("zavoz_goda", "sab"))
		_, err := board.BeginSave("zavoz_goda")
		require.NoError(t, err)
		board.Reconcile(nil)
		v, _ := board.Get("zavoz_goda")
		assert.Equal(t, VoteSaving, v.Status)
		require.NoError(t, board.SaveSucceeded("zavoz_goda"))
	})

	t.Run("response older than confirmed save is skipped", func(t *testing.T) {
		board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
		since := board.Revision()
		require.NoError(t, board.Select("zavoz_goda", "sab"))
		_, err := board.BeginSave("zavoz_goda")
		require.NoError(t, err)
		require.NoError(t, board.SaveSucceeded("zavoz_goda"))
		assert.Greater(t, board.Revision(), since)

		board.ReconcileSince(map[string]string{}, since)
		v, _ := board.Get("zavoz_goda")
		assert.Equal(t, VoteLocked, v.Status)
		assert.Equal(t, "sab", v.Saved)

		board.ReconcileSince(map[string]string{}, board.Revision())
		v, _ = board.Get("zavoz_goda")
		assert.Equal(t, VoteNone, v.Status)
	})

	t.Run("input map is not modified", func(t *testing.T) {
		board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
		server := map[string]string{"zavoz_goda": "iris", "old": "x"}
		board.Reconcile(server)
		assert.Len(t, server, 2)
	})
}

func TestBoardResetAndOrder(t *testing.T) {
	board := NewBoard(testBallot(t), config.VotePolicyLocked, false)
	board.Reconcile(map[string]string{"zavoz_goda": "iris"})
	board.Reset()
	all := board.All()
	require.Len(t, all, 1)
	assert.Equal(t, VoteNone, all[0].Status)
	assert.Equal(t, config.VotePolicyLocked, NewBoard(testBallot(t), "", false).Policy())
}

func TestPhase(t *testing.T) {
	ctx := NewAppContext(&config.Config{VotePolicy: config.VotePolicyLocked}, testBallot(t), "")
	assert.Equal(t, PhaseUnauthenticated, ctx.Phase("zavoz_goda"))

	ctx.Token = "t"
	ctx.User = &User{Login: "viewer"}
	assert.Equal(t, PhaseUnvoted, ctx.Phase("zavoz_goda"))

	require.NoError(t, ctx.Votes.Select("zavoz_goda", "iris"))
	assert.Equal(t, PhaseSelecting, ctx.Phase("zavoz_goda"))

	_, err := ctx.Votes.BeginSave("zavoz_goda")
	require.NoError(t, err)
	assert.Equal(t, PhaseSelecting, ctx.Phase("zavoz_goda"))

	require.NoError(t, ctx.Votes.SaveSucceeded("zavoz_goda"))
	assert.Equal(t, PhaseLocked, ctx.Phase("zavoz_goda"))
}

func TestUserLabel(t *testing.T) {
	assert.Equal(t, "Лиза (@liza)", User{DisplayName: "Лиза", Login: "liza"}.Label())
	assert.Equal(t, "@liza", User{Login: "liza"}.Label())
}
