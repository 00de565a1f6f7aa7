package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"panelcast/internal/artifacts"
	"panelcast/internal/config"
	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/notifications"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
	"panelcast/internal/testsupport"
	"panelcast/internal/workflow"
)

// control lets a test pause one stage, fail one stage, and size the source.
type control struct {
	mu          sync.Mutex
	sourcePages int
	holdStage   stage.Name
	holdAll     bool
	holdJobs    map[string]bool
	release     chan struct{}
	entered     chan string
	fail        map[stage.Name]error
}

func newControl(pages int) *control {
	return &control{
		sourcePages: pages,
		holdJobs:    make(map[string]bool),
		release:     make(chan struct{}),
		entered:     make(chan string, 512),
		fail:        make(map[stage.Name]error),
	}
}

// hold pauses every job that reaches name until releaseAll.
func (c *control) hold(name stage.Name) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdStage = name
	c.holdAll = true
	c.holdJobs = make(map[string]bool)
	c.release = make(chan struct{})
}

// holdOnly narrows the current hold to one job.
func (c *control) holdOnly(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdAll = false
	c.holdJobs = map[string]bool{jobID: true}
}

func (c *control) releaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holdStage == "" {
		return
	}
	close(c.release)
	c.holdStage = ""
	c.holdAll = false
	c.holdJobs = make(map[string]bool)
}

func (c *control) failStage(name stage.Name, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, name)
		return
	}
	c.fail[name] = err
}

func (c *control) wait(ctx context.Context, name stage.Name, jobID string) error {
	c.mu.Lock()
	held := c.holdStage == name && (c.holdAll || c.holdJobs[jobID])
	rel := c.release
	failure := c.fail[name]
	c.mu.Unlock()

	if failure != nil {
		return failure
	}
	if !held {
		return nil
	}
	select {
	case c.entered <- jobID:
	default:
	}
	select {
	case <-rel:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *control) awaitEntered(t *testing.T, jobID string) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case id := <-c.entered:
			if id == jobID {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for job %s to reach the held stage", jobID)
		}
	}
}

type stubStage struct {
	name    stage.Name
	ctrl    *control
	prepare func(*manifest.Comic) error
	run     func(stage.Item) (stage.Item, error)
	calls   atomic.Int64
}

func (s *stubStage) Name() stage.Name { return s.name }

func (s *stubStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

func (s *stubStage) Prepare(_ context.Context, doc *manifest.Comic) error {
	if s.prepare == nil {
		return nil
	}
	return s.prepare(doc)
}

func (s *stubStage) Run(ctx context.Context, item stage.Item) (stage.Item, error) {
	s.calls.Add(1)
	if err := s.ctrl.wait(ctx, s.name, item.Doc.ComicID); err != nil {
		return item, err
	}
	return s.run(item)
}

// newStubStages builds a pipeline that yields two panels per page and two
// bubbles (speech then narration) per panel.
func newStubStages(ctrl *control) (stage.Set, map[stage.Name]*stubStage) {
	stubs := map[stage.Name]*stubStage{
		stage.PDFToImages: {
			prepare: func(doc *manifest.Comic) error {
				first, last, ok := doc.Selection.Clamp(ctrl.sourcePages)
				if !ok {
					return services.Wrap(services.ErrInput, string(stage.PDFToImages), "select pages", "selection past end of document", nil)
				}
				doc.Pages = doc.Pages[:0]
				for n := first; n <= last; n++ {
					doc.Pages = append(doc.Pages, manifest.Page{
						PageID:     manifest.PageID(doc.ComicID, n),
						PageNumber: n,
						Panels:     []manifest.Panel{},
					})
				}
				return nil
			},
			run: func(item stage.Item) (stage.Item, error) {
				item.Page.ImagePath = artifacts.PageImage(item.Page.PageNumber)
				return item, nil
			},
		},
		stage.PanelDetection: {
			run: func(item stage.Item) (stage.Item, error) {
				for i := 0; i < 2; i++ {
					id := manifest.PanelID(item.Page.PageID, i+1)
					item.Page.Panels = append(item.Page.Panels, manifest.Panel{
						PanelID:    id,
						OrderIndex: i,
						BBox:       manifest.BBox{X: i * 100, W: 100, H: 150},
						ImagePath:  artifacts.PanelImage(id),
						Bubbles:    []manifest.Bubble{},
					})
				}
				return item, nil
			},
		},
		stage.BubbleOCR: {
			run: func(item stage.Item) (stage.Item, error) {
				types := []manifest.BubbleType{manifest.BubbleSpeech, manifest.BubbleNarration}
				for j, kind := range types {
					item.Panel.Bubbles = append(item.Panel.Bubbles, manifest.Bubble{
						BubbleID:      manifest.BubbleID(item.Panel.PanelID, j+1),
						OrderIndex:    j,
						Type:          kind,
						BBox:          manifest.BBox{X: 10 + j*20, Y: 10, W: 15, H: 8},
						Text:          fmt.Sprintf("line %d of %s", j, item.Panel.PanelID),
						OCRConfidence: 0.9,
					})
				}
				return item, nil
			},
		},
		stage.SpeakerAttribution: {
			run: func(item stage.Item) (stage.Item, error) {
				for p := range item.Page.Panels {
					for b := range item.Page.Panels[p].Bubbles {
						bubble := &item.Page.Panels[p].Bubbles[b]
						if bubble.Type == manifest.BubbleNarration {
							bubble.SpeakerID = manifest.NarratorSpeakerID
						} else {
							bubble.SpeakerID = "char_0"
						}
					}
				}
				item.Speakers = []manifest.Speaker{
					{SpeakerID: "char_0", Label: "Hero", Gender: "female", AgeGroup: "adult"},
					{SpeakerID: manifest.NarratorSpeakerID, Label: "Narrator"},
				}
				return item, nil
			},
		},
		stage.VoiceAssignment: {
			prepare: func(doc *manifest.Comic) error {
				for i := range doc.Speakers {
					doc.Speakers[i].VoiceID = "nova"
				}
				return nil
			},
			run: func(item stage.Item) (stage.Item, error) {
				item.Bubble.Emotion = "calm"
				return item, nil
			},
		},
		stage.TTSGeneration: {
			run: func(item stage.Item) (stage.Item, error) {
				item.Bubble.AudioPath = artifacts.VoiceClip(item.Bubble.BubbleID, "mp3")
				return item, nil
			},
		},
		stage.SFXGeneration: {
			run: func(item stage.Item) (stage.Item, error) {
				item.Panel.SFXPrompt = "wind"
				item.Panel.SFXAudioPath = artifacts.SFXClip(item.Panel.PanelID, "wav")
				return item, nil
			},
		},
		stage.Normalization: {
			run: func(item stage.Item) (stage.Item, error) {
				item.Panel.NormalizedImagePath = artifacts.NormalizedImage(item.Panel.PanelID)
				item.Panel.NormalizationFillModel = "letterbox"
				return item, nil
			},
		},
	}
	set := make(stage.Set, len(stubs))
	for name, stub := range stubs {
		stub.name = name
		stub.ctrl = ctrl
		set[name] = stub
	}
	return set, stubs
}

type recordingSink struct {
	mu     sync.Mutex
	events []store.Job
}

func (r *recordingSink) Publish(_ context.Context, job store.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, job)
	return nil
}

func (r *recordingSink) forJob(id string) []store.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Job
	for _, job := range r.events {
		if job.ID == id {
			out = append(out, job)
		}
	}
	return out
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) count(event notifications.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	ctrl     *control
	stages   stage.Set
	stubs    map[stage.Name]*stubStage
	sink     *recordingSink
	notifier *stubNotifier
	mgr      *workflow.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	ctrl := newControl(5)
	set, stubs := newStubStages(ctrl)
	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		ctrl:     ctrl,
		stages:   set,
		stubs:    stubs,
		sink:     &recordingSink{},
		notifier: &stubNotifier{},
	}
	t.Cleanup(ctrl.releaseAll)
	h.mgr = h.startManager(t)
	return h
}

// startManager builds and starts a manager over the harness store, as a
// restarted daemon would.
func (h *harness) startManager(t *testing.T, opts ...workflow.ManagerOption) *workflow.Manager {
	t.Helper()
	opts = append([]workflow.ManagerOption{
		workflow.WithNotifier(h.notifier),
		workflow.WithStatusSinks(h.sink),
	}, opts...)
	mgr := workflow.NewManager(h.cfg, h.store, h.stages, logging.NewNop(), opts...)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func (h *harness) totalCalls() int64 {
	var n int64
	for _, stub := range h.stubs {
		n += stub.calls.Load()
	}
	return n
}

func (h *harness) waitTerminal(t *testing.T, jobID string) *store.Job {
	t.Helper()
	var job *store.Job
	testsupport.Eventually(t, 10*time.Second, "job "+jobID+" to finish", func() bool {
		got, err := h.store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		job = got
		return got != nil && got.Terminal()
	})
	return job
}

func pdfSource(tag string) []byte {
	return []byte("%PDF-1.7\n" + tag + "\n%%EOF\n")
}

// assertMonotonic checks that stage rank and progress never go backward
// across the observed transitions.
func assertMonotonic(t *testing.T, events []store.Job) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.ProgressPct < prev.ProgressPct {
			t.Fatalf("progress decreased from %d to %d at event %d", prev.ProgressPct, cur.ProgressPct, i)
		}
		if cur.Stage.Rank() < prev.Stage.Rank() {
			t.Fatalf("stage moved back from %s to %s at event %d", prev.Stage, cur.Stage, i)
		}
	}
}

func observedStages(events []store.Job) []stage.Name {
	var out []stage.Name
	for _, ev := range events {
		if len(out) == 0 || out[len(out)-1] != ev.Stage {
			out = append(out, ev.Stage)
		}
	}
	return out
}

type fixedPages int

func (n fixedPages) PageCount(context.Context, string) (int, error) { return int(n), nil }
