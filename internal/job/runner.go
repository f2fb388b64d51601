package job

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/spotforge/spotforge/internal/config"
	"github.com/spotforge/spotforge/internal/deck"
	"github.com/spotforge/spotforge/internal/icons"
	"github.com/spotforge/spotforge/internal/layout"
	"github.com/spotforge/spotforge/internal/render"
)

// Event is one progress update for a running job.
type Event struct {
	JobID  string `json:"job_id"`
	Phase  string `json:"phase"` // layout, render, done, failed
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Status Status `json:"status"`
}

// Runner validates generation requests, runs the pipeline and fans out
// progress events. The render step is injected so tests can run the
// pipeline without touching image code.
type Runner struct {
	Icons *icons.Store
	Jobs  *Store
	Cfg   config.Config

	// NewRenderer and WriteDoc default to the raster renderer and the
	// PDF writer.
	NewRenderer func(shape render.CardShape) render.CardRenderer
	WriteDoc    render.DocumentWriter

	mu   sync.Mutex
	subs map[string][]chan Event
}

// New wires a runner with the default render stack.
func New(ic *icons.Store, jobs *Store, cfg config.Config) *Runner {
	return &Runner{
		Icons:       ic,
		Jobs:        jobs,
		Cfg:         cfg,
		NewRenderer: func(shape render.CardShape) render.CardRenderer { return render.NewRaster(shape) },
		WriteDoc:    render.WritePDF,
		subs:        make(map[string][]chan Event),
	}
}

// Start validates the request, runs the cheap combinatorial stages
// synchronously (so infeasible parameters fail the call itself), and
// launches layout and rendering in the background. The returned job is
// already persisted with status running.
func (r *Runner) Start(p Params) (Job, error) {
	strategy, err := r.Cfg.LayoutOptions(p.Strategy)
	if err != nil {
		return Job{}, err
	}
	shape, err := render.ParseCardShape(p.CardShape)
	if err != nil {
		return Job{}, err
	}

	policy := deck.FallbackFail
	if p.RoundDown {
		policy = deck.FallbackRoundDown
	}
	d, err := deck.Build(p.SymbolsPerCard, policy)
	if err != nil {
		return Job{}, err
	}

	set, err := r.Icons.Load(p.IconSet)
	if err != nil {
		return Job{}, err
	}

	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	sel, err := deck.Select(d, p.Cards, set.Resources, rng)
	if err != nil {
		return Job{}, err
	}

	cv := layout.Canvas{Width: float64(r.Cfg.CanvasSize), Height: float64(r.Cfg.CanvasSize)}
	if err := layout.Precheck(cv, strategy); err != nil {
		return Job{}, err
	}

	j := Job{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Params:         p,
		Seed:           seed,
		Status:         StatusRunning,
		Cards:          len(sel.Cards),
		SymbolsPerCard: sel.SymbolsPerCard,
		SymbolsUsed:    len(sel.Icons),
	}
	if err := r.Jobs.Put(&j); err != nil {
		return Job{}, err
	}
	klog.Infof("job %s: %d cards, %d symbols per card, %d icons, seed %d",
		j.ID, j.Cards, j.SymbolsPerCard, j.SymbolsUsed, seed)

	go r.run(j, sel, set, cv, strategy, shape, seed)
	return j, nil
}

func (r *Runner) run(j Job, sel *deck.SelectedDeck, set *icons.Set, cv layout.Canvas, opt layout.Options, shape render.CardShape, seed int64) {
	fail := func(err error) {
		klog.Errorf("job %s failed: %v", j.ID, err)
		j.Status = StatusFailed
		j.Error = err.Error()
		if err := r.Jobs.Put(&j); err != nil {
			klog.Errorf("job %s: persisting failure: %v", j.ID, err)
		}
		r.publish(Event{JobID: j.ID, Phase: "failed", Status: StatusFailed})
	}

	start := time.Now()
	layouts, err := layout.Cards(sel, cv, opt, seed, func(done, total int) {
		r.publish(Event{JobID: j.ID, Phase: "layout", Done: done, Total: total, Status: StatusRunning})
	})
	if err != nil {
		fail(err)
		return
	}
	klog.V(1).Infof("job %s: layout of %d cards took %s", j.ID, len(layouts), time.Since(start))

	renderer := r.NewRenderer(shape)
	images := make([]image.Image, len(layouts))
	for i, l := range layouts {
		img, err := renderer.Render(l, set.Open)
		if err != nil {
			fail(err)
			return
		}
		images[i] = img
		r.publish(Event{JobID: j.ID, Phase: "render", Done: i + 1, Total: len(layouts), Status: StatusRunning})
	}

	pdfPath := filepath.Join(r.Jobs.Dir(), j.ID+".pdf")
	fd, err := os.Create(pdfPath)
	if err != nil {
		fail(err)
		return
	}
	if err := r.WriteDoc(fd, images); err != nil {
		fd.Close()
		fail(err)
		return
	}
	if err := fd.Close(); err != nil {
		fail(err)
		return
	}
	j.PDFPath = pdfPath

	if j.Params.ExportPNG {
		for i, img := range images {
			p := filepath.Join(r.Jobs.Dir(), fmt.Sprintf("%s_card_%d.png", j.ID, i))
			if err := imaging.Save(img, p); err != nil {
				fail(err)
				return
			}
			j.PNGPaths = append(j.PNGPaths, p)
		}
	}

	j.Status = StatusDone
	if err := r.Jobs.Put(&j); err != nil {
		fail(err)
		return
	}
	klog.Infof("job %s: done in %s (%s)", j.ID, time.Since(start), pdfPath)
	r.publish(Event{JobID: j.ID, Phase: "done", Done: j.Cards, Total: j.Cards, Status: StatusDone})
}

// Subscribe returns a channel of progress events for one job and a
// cancel function. The channel closes after a terminal event or on
// cancel.
func (r *Runner) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	r.mu.Lock()
	r.subs[jobID] = append(r.subs[jobID], ch)
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subs[jobID]
		for i, c := range subs {
			if c == ch {
				r.subs[jobID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (r *Runner) publish(ev Event) {
	terminal := ev.Phase == "done" || ev.Phase == "failed"
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs[ev.JobID] {
		select {
		case ch <- ev:
		default: // slow consumers drop intermediate events
		}
	}
	if terminal {
		for _, ch := range r.subs[ev.JobID] {
			close(ch)
		}
		delete(r.subs, ev.JobID)
	}
}
