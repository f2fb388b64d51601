package job

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/spotforge/spotforge/internal/config"
	"github.com/spotforge/spotforge/internal/deck"
	"github.com/spotforge/spotforge/internal/icons"
	"github.com/spotforge/spotforge/internal/layout"
	"github.com/spotforge/spotforge/internal/render"
)

// fakeRenderer skips image compositing so pipeline tests stay fast.
type fakeRenderer struct{}

func (fakeRenderer) Render(l *layout.CardLayout, _ render.IconResolver) (image.Image, error) {
	return imaging.New(16, 16, color.NRGBA{255, 255, 255, 255}), nil
}

func testRunner(t *testing.T, iconCount int) *Runner {
	t.Helper()
	root := t.TempDir()
	setDir := filepath.Join(root, "defaults", "shapes")
	require.NoError(t, os.MkdirAll(setDir, 0o755))
	for i := 0; i < iconCount; i++ {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, imaging.New(24, 24, color.NRGBA{uint8(i * 10), 0, 0, 255})))
		require.NoError(t, os.WriteFile(filepath.Join(setDir, fmt.Sprintf("icon%02d.png", i)), buf.Bytes(), 0o644))
	}

	cfg := config.Default()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.DefaultIconsDir = filepath.Join(root, "defaults")
	cfg.CanvasSize = 300

	ic, err := icons.NewStore(cfg.DefaultIconsDir, cfg.IconsDir())
	require.NoError(t, err)
	jobs, err := NewStore(cfg.ExportsDir())
	require.NoError(t, err)

	r := New(ic, jobs, cfg)
	r.NewRenderer = func(render.CardShape) render.CardRenderer { return fakeRenderer{} }
	r.WriteDoc = func(w io.Writer, cards []image.Image) error {
		_, err := w.Write([]byte("%PDF-fake"))
		return err
	}
	return r
}

func waitForJob(t *testing.T, r *Runner, id string) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := r.Jobs.Get(id); ok && j.Status != StatusRunning {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

func TestRunnerHappyPath(t *testing.T) {
	r := testRunner(t, 7) // order 2 needs 7 icons

	j, err := r.Start(Params{
		SymbolsPerCard: 3,
		IconSet:        "default:shapes",
		Strategy:       "grid",
		CardShape:      "square",
		Seed:           42,
		ExportPNG:      true,
	})
	require.NoError(t, err)
	require.Equal(t, StatusRunning, j.Status)
	require.Equal(t, 7, j.Cards)
	require.Equal(t, 3, j.SymbolsPerCard)
	require.Equal(t, 7, j.SymbolsUsed)
	require.Equal(t, int64(42), j.Seed)

	done := waitForJob(t, r, j.ID)
	require.Equal(t, StatusDone, done.Status)
	require.NotEmpty(t, done.PDFPath)
	data, err := os.ReadFile(done.PDFPath)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	require.Len(t, done.PNGPaths, 7)
	for _, p := range done.PNGPaths {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}
}

func TestRunnerPicksSeed(t *testing.T) {
	r := testRunner(t, 7)
	j, err := r.Start(Params{SymbolsPerCard: 3, IconSet: "default:shapes"})
	require.NoError(t, err)
	require.NotZero(t, j.Seed, "a zero seed gets replaced")
	waitForJob(t, r, j.ID)
}

func TestRunnerValidation(t *testing.T) {
	r := testRunner(t, 7)

	cases := []struct {
		name string
		p    Params
		want error
	}{
		{"bad strategy", Params{SymbolsPerCard: 3, IconSet: "default:shapes", Strategy: "spiral"}, layout.ErrUnknownStrategy},
		{"non prime power", Params{SymbolsPerCard: 7, IconSet: "default:shapes"}, deck.ErrDeckInfeasible},
		{"missing icon set", Params{SymbolsPerCard: 3, IconSet: "default:nope"}, icons.ErrSetNotFound},
		{"too few icons", Params{SymbolsPerCard: 4, IconSet: "default:shapes"}, deck.ErrInsufficientIcons},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Start(tc.p)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := r.Start(Params{SymbolsPerCard: 3, IconSet: "default:shapes", CardShape: "hexagon"})
	require.Error(t, err)
}

func TestRunnerRoundDown(t *testing.T) {
	r := testRunner(t, 31) // order 5 universe
	j, err := r.Start(Params{SymbolsPerCard: 7, IconSet: "default:shapes", RoundDown: true, Seed: 1})
	require.NoError(t, err)
	require.Equal(t, 6, j.SymbolsPerCard, "order 6 rounds down to 5")
	require.Equal(t, 31, j.Cards)
	waitForJob(t, r, j.ID)
}

func TestRunnerRenderFailureMarksJob(t *testing.T) {
	r := testRunner(t, 7)
	r.WriteDoc = func(io.Writer, []image.Image) error { return errors.New("disk full") }

	j, err := r.Start(Params{SymbolsPerCard: 3, IconSet: "default:shapes", Seed: 5})
	require.NoError(t, err)
	done := waitForJob(t, r, j.ID)
	require.Equal(t, StatusFailed, done.Status)
	require.Contains(t, done.Error, "disk full")
}

func TestSubscribePublish(t *testing.T) {
	r := testRunner(t, 7)

	ch, cancel := r.Subscribe("j1")
	defer cancel()

	r.publish(Event{JobID: "j1", Phase: "layout", Done: 1, Total: 7, Status: StatusRunning})
	ev := <-ch
	require.Equal(t, "layout", ev.Phase)
	require.Equal(t, 1, ev.Done)

	// Events for other jobs do not cross streams.
	r.publish(Event{JobID: "j2", Phase: "layout", Done: 1, Total: 7, Status: StatusRunning})
	select {
	case ev := <-ch:
		t.Fatalf("received foreign event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// A terminal event closes the channel.
	r.publish(Event{JobID: "j1", Phase: "done", Done: 7, Total: 7, Status: StatusDone})
	ev, ok := <-ch
	require.True(t, ok)
	require.Equal(t, "done", ev.Phase)
	_, ok = <-ch
	require.False(t, ok, "channel closes after the terminal event")
}

func TestSubscribeCancel(t *testing.T) {
	r := testRunner(t, 7)
	ch, cancel := r.Subscribe("j1")
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	// Publishing after cancel must not panic.
	r.publish(Event{JobID: "j1", Phase: "done", Status: StatusDone})
}
