package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/spotforge/spotforge/internal/job"
)

func TestJobWebsocket(t *testing.T) {
	state, r := testState(t)
	srv := newTestServer(t, r)

	j, err := state.Runner.Start(job.Params{
		SymbolsPerCard: 3,
		IconSet:        "default:animals",
		Strategy:       "grid",
		Seed:           3,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + j.ID + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// First frame is the job snapshot.
	var snapshot job.Job
	require.NoError(t, wsjson.Read(ctx, conn, &snapshot))
	require.Equal(t, j.ID, snapshot.ID)

	// Then progress events until the job reaches a terminal phase and
	// the server closes with StatusNormalClosure.
	sawTerminal := false
	for {
		var ev job.Event
		err := wsjson.Read(ctx, conn, &ev)
		if err != nil {
			require.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err), "err: %v", err)
			break
		}
		require.Equal(t, j.ID, ev.JobID)
		if ev.Phase == "done" || ev.Phase == "failed" {
			sawTerminal = true
		}
	}

	done, ok := state.Jobs.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, job.StatusDone, done.Status, done.Error)
	// A snapshot read after the terminal event is also a valid end; the
	// stream either carried the terminal event or closed right after it.
	_ = sawTerminal
}

func TestJobWebsocketFinishedJob(t *testing.T) {
	state, r := testState(t)
	srv := newTestServer(t, r)

	j, err := state.Runner.Start(job.Params{
		SymbolsPerCard: 3,
		IconSet:        "default:animals",
		Seed:           4,
	})
	require.NoError(t, err)

	deadline := time.Now().Add(30 * time.Second)
	for {
		if cur, ok := state.Jobs.Get(j.ID); ok && cur.Status != job.StatusRunning {
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not finish")
		time.Sleep(20 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + j.ID + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The snapshot already carries the terminal status, then the server
	// closes cleanly instead of holding the connection open.
	var snapshot job.Job
	require.NoError(t, wsjson.Read(ctx, conn, &snapshot))
	require.Equal(t, job.StatusDone, snapshot.Status)

	var extra job.Event
	err = wsjson.Read(ctx, conn, &extra)
	require.Error(t, err)
	require.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestJobWebsocketUnknownJob(t *testing.T) {
	_, r := testState(t)
	srv := newTestServer(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/nope/ws"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
