package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestController(t *testing.T, repo *TestRepo) *Controller {
	t.Helper()
	c := NewController(repo, nil)
	c.now = repo.Now
	c.tickInterval = 5 * time.Millisecond
	t.Cleanup(c.Close)
	return c
}

func TestController_StartFinish(t *testing.T) {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	clock := start
	repo := NewTestRepo()
	repo.Now = func() time.Time { return clock }

	c := newTestController(t, repo)
	programID := repo.AddProgram("Push A", "Bench Press", "Overhead Press")

	require.Nil(t, c.Active())
	assert.Equal(t, 0, c.ElapsedSeconds())

	session, err := c.StartWorkout(context.Background(), programID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.IsActive)
	assert.Equal(t, "Push A", session.ProgramName)

	// one log row per program exercise, materialized at start
	logs, err := repo.SessionLogs(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// 125 seconds in, duration rounds to 2 minutes on finish
	clock = start.Add(125 * time.Second)
	require.NoError(t, c.FinishWorkout(context.Background()))

	assert.Nil(t, c.Active())
	assert.Equal(t, 0, c.ElapsedSeconds())

	finished := repo.Sessions[session.ID]
	require.NotNil(t, finished)
	assert.False(t, finished.IsActive)
	require.NotNil(t, finished.DurationMinutes)
	assert.Equal(t, 2, *finished.DurationMinutes)
}

func TestController_SecondStartRejected(t *testing.T) {
	repo := NewTestRepo()
	c := newTestController(t, repo)

	pushID := repo.AddProgram("Push A", "Bench Press")
	legsID := repo.AddProgram("Legs", "Squat")

	_, err := c.StartWorkout(context.Background(), pushID)
	require.NoError(t, err)

	_, err = c.StartWorkout(context.Background(), legsID)
	require.ErrorIs(t, err, ErrActiveSessionExists)

	// the running session is untouched by the rejected start
	active, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pushID, active.ProgramID)
}

func TestController_CancelDeletesEverything(t *testing.T) {
	repo := NewTestRepo()
	c := newTestController(t, repo)

	programID := repo.AddProgram("Legs", "Squat", "Leg Press")
	session, err := c.StartWorkout(context.Background(), programID)
	require.NoError(t, err)

	require.NoError(t, c.CancelWorkout(context.Background()))

	assert.Nil(t, c.Active())
	assert.NotContains(t, repo.Sessions, session.ID)
	assert.Empty(t, repo.Logs)

	// cancelling again while idle is a no-op
	require.NoError(t, c.CancelWorkout(context.Background()))
}

func TestController_FinishWhileIdleIsNoop(t *testing.T) {
	repo := NewTestRepo()
	c := newTestController(t, repo)

	require.NoError(t, c.FinishWorkout(context.Background()))
	assert.Nil(t, c.Active())
}

func TestController_ElapsedTicks(t *testing.T) {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	clock := start
	repo := NewTestRepo()
	repo.Now = func() time.Time { return clock }

	c := newTestController(t, repo)
	programID := repo.AddProgram("Push A", "Bench Press")

	_, err := c.StartWorkout(context.Background(), programID)
	require.NoError(t, err)

	elapsedCh, unsubscribe := c.Subscribe()
	defer unsubscribe()

	clock = start.Add(61*time.Second + 900*time.Millisecond)

	// wait for a tick computed from the advanced clock, floor gives 61
	require.Eventually(t, func() bool {
		return c.ElapsedSeconds() == 61
	}, time.Second, time.Millisecond)

	select {
	case elapsed := <-elapsedCh:
		assert.Equal(t, 61, elapsed)
	case <-time.After(time.Second):
		t.Fatal("no tick received")
	}
}

func TestController_RefreshResumesActiveSession(t *testing.T) {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	clock := start
	repo := NewTestRepo()
	repo.Now = func() time.Time { return clock }

	programID := repo.AddProgram("Push A", "Bench Press")
	_, err := repo.Start(context.Background(), programID)
	require.NoError(t, err)

	// fresh controller, as after a process restart
	clock = start.Add(42 * time.Second)
	c := newTestController(t, repo)
	require.NoError(t, c.Refresh(context.Background()))

	active := c.Active()
	require.NotNil(t, active)
	assert.Equal(t, programID, active.ProgramID)
	assert.Equal(t, 42, c.ElapsedSeconds())
}

func TestController_RefreshWhileIdle(t *testing.T) {
	repo := NewTestRepo()
	c := newTestController(t, repo)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Nil(t, c.Active())
	assert.Equal(t, 0, c.ElapsedSeconds())
}
