package main

import (
	"testing"

	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/scenario"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *session {
	t.Helper()
	base := scenario.Default()
	base.Engine.NumEntities = 2
	base.Engine.DurationSec = 2
	sess, err := newSession(base, logging.Noop())
	require.NoError(t, err)
	t.Cleanup(sess.close)
	return sess
}

func TestSession_Phases(t *testing.T) {
	sess := newTestSession(t)
	require.Equal(t, phaseIdle, sess.phase)

	_, ok := sess.advance(1)
	require.False(t, ok, "idle sessions ignore ticks")

	require.NoError(t, sess.apply(ClientMessage{Type: "pause"}))
	require.Equal(t, phaseIdle, sess.phase, "pause only applies to a running session")

	require.NoError(t, sess.apply(ClientMessage{Type: "start"}))
	require.True(t, *sess.status().Running)

	u, ok := sess.advance(1)
	require.True(t, ok)
	require.False(t, u.finished)

	require.NoError(t, sess.apply(ClientMessage{Type: "pause"}))
	require.Equal(t, phasePaused, sess.phase)
	_, ok = sess.advance(1)
	require.False(t, ok)

	require.NoError(t, sess.apply(ClientMessage{Type: "start"}))
	u, ok = sess.advance(1)
	require.True(t, ok)
	require.True(t, u.finished)
	require.NoError(t, u.err)
	require.Len(t, u.summary, 4)
	require.Equal(t, phaseFinished, sess.phase)

	require.NoError(t, sess.apply(ClientMessage{Type: "start"}))
	require.Equal(t, phaseFinished, sess.phase, "a finished run needs a reset")

	require.NoError(t, sess.apply(ClientMessage{Type: "reset"}))
	require.Equal(t, phaseIdle, sess.phase)
	require.Equal(t, 0.0, sess.run.Engine.Now())
}

func TestSession_RejectedCommands(t *testing.T) {
	sess := newTestSession(t)

	require.ErrorContains(t, sess.apply(ClientMessage{Type: "config_update"}), "without config")
	require.ErrorContains(t, sess.apply(ClientMessage{Type: "rewind"}), `unknown command "rewind"`)

	cfg := sess.run.Engine.Config()
	cfg.NumEntities = -1
	require.Error(t, sess.apply(ClientMessage{Type: "config_update", Config: &cfg}))
	require.Equal(t, 2, sess.status().Config.NumEntities, "rejected update keeps the old run")
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "running", phaseRunning.String())
	require.Equal(t, "phase(9)", phase(9).String())
}
