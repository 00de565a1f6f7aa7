package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"panelcast/internal/fingerprint"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
	"panelcast/internal/testsupport"
)

func newJob(id, fp string, normalize bool) *store.Job {
	return &store.Job{
		ID:          id,
		Fingerprint: fp,
		Title:       "Sample",
		Pages:       fingerprint.PageRange{Start: 1, End: 3},
		Normalize:   normalize,
		Plan:        stage.Plan(normalize),
	}
}

func docFor(id string, pages int) *manifest.Comic {
	doc := &manifest.Comic{ComicID: id, Fingerprint: "fp"}
	for n := 1; n <= pages; n++ {
		doc.Pages = append(doc.Pages, manifest.Page{PageID: manifest.PageID(id, n), PageNumber: n})
	}
	return doc
}

func TestCreateAndGetJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-1", "fp-1", true)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	got, err := st.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil || got.Stage != stage.Queued || got.Fingerprint != "fp-1" {
		t.Fatalf("unexpected job %#v", got)
	}
	if len(got.Plan) != len(stage.Plan(true)) || !got.Normalize {
		t.Fatalf("plan not round-tripped: %v", got.Plan)
	}
	if got.Pages != (fingerprint.PageRange{Start: 1, End: 3}) {
		t.Fatalf("page range not round-tripped: %v", got.Pages)
	}

	missing, err := st.GetJob(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown job, got %v %v", missing, err)
	}
}

func TestCommitStageIsSequentialAndMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-2", "fp-2", false)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	total := len(job.Plan)

	if _, err := st.CommitStage(ctx, job.ID, 2, docFor(job.ID, 1)); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected out of sequence conflict, got %v", err)
	}

	last := 0
	for i, name := range job.Plan {
		if err := st.MarkStage(ctx, job.ID, name); err != nil {
			t.Fatalf("MarkStage(%s): %v", name, err)
		}
		pct, err := st.CommitStage(ctx, job.ID, i+1, docFor(job.ID, 3))
		if err != nil {
			t.Fatalf("CommitStage(%d): %v", i+1, err)
		}
		if want := 100 * (i + 1) / total; pct != want {
			t.Fatalf("progress after %d stages = %d want %d", i+1, pct, want)
		}
		if pct < last {
			t.Fatalf("progress decreased from %d to %d", last, pct)
		}
		last = pct
	}

	if err := st.MarkStage(ctx, job.ID, stage.PDFToImages); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected backward stage to conflict, got %v", err)
	}
	if err := st.MarkDone(ctx, job.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	got, _ := st.GetJob(ctx, job.ID)
	if got.Stage != stage.Done || got.ProgressPct != 100 || got.FinishedAt == nil {
		t.Fatalf("unexpected done job %#v", got)
	}
	if err := st.SetFailed(ctx, job.ID, "late"); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("done jobs cannot fail, got %v", err)
	}
}

func TestMarkDoneRequiresFullPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-3", "fp-3", false)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := st.MarkDone(ctx, job.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetFailedKeepsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-4", "fp-4", false)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := st.CommitStage(ctx, job.ID, 1, docFor(job.ID, 1)); err != nil {
		t.Fatalf("CommitStage: %v", err)
	}
	if err := st.SetFailed(ctx, job.ID, "tts_generation: collaborator timed out"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	got, _ := st.GetJob(ctx, job.ID)
	if got.Stage != stage.Failed || got.Error != "tts_generation: collaborator timed out" {
		t.Fatalf("unexpected failed job %#v", got)
	}
	if got.ProgressPct == 0 {
		t.Fatal("expected progress to be preserved")
	}
	if err := st.SetFailed(ctx, "missing", "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListResumableAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := st.CreateJob(ctx, newJob(id, "fp-"+id, false)); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	if err := st.SetFailed(ctx, "b", "boom"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}

	resumable, err := st.ListResumable(ctx)
	if err != nil {
		t.Fatalf("ListResumable: %v", err)
	}
	if len(resumable) != 2 || resumable[0].ID != "a" || resumable[1].ID != "c" {
		t.Fatalf("unexpected resumable jobs %v", resumable)
	}

	failed, err := st.ListJobs(ctx, stage.Failed)
	if err != nil || len(failed) != 1 || failed[0].ID != "b" {
		t.Fatalf("unexpected failed list %v %v", failed, err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[stage.Queued] != 2 || stats[stage.Failed] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	active, err := st.FindActiveByFingerprint(ctx, "fp-c")
	if err != nil || active == nil || active.ID != "c" {
		t.Fatalf("FindActiveByFingerprint = %v %v", active, err)
	}
	if none, _ := st.FindActiveByFingerprint(ctx, "fp-b"); none != nil {
		t.Fatalf("failed jobs are not active: %v", none)
	}
}

func TestCachePutGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.Get(ctx, "fp"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := st.Put(ctx, "fp", "job-old", docFor("old", 2)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put(ctx, "fp", "job-new", docFor("new", 3)); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	entry, err := st.Get(ctx, "fp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.JobID != "job-new" || entry.Manifest.ComicID != "new" || len(entry.Manifest.Pages) != 3 {
		t.Fatalf("entry mixes writes: %+v", entry)
	}
	if entry.Stage != stage.Done {
		t.Fatalf("unexpected stage %s", entry.Stage)
	}
	if n, _ := st.CacheSize(ctx); n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}
}

func TestConcurrentPutsNeverMix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			unlock := st.Locks().Lock("fp")
			defer unlock()
			if err := st.Put(ctx, "fp", id, docFor(id, i+1)); err != nil {
				t.Errorf("Put: %v", err)
			}
		}(i)
	}
	wg.Wait()

	entry, err := st.Get(ctx, "fp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Manifest.ComicID != entry.JobID {
		t.Fatalf("job %s paired with manifest %s", entry.JobID, entry.Manifest.ComicID)
	}
	if want := int(entry.JobID[0]-'a') + 1; len(entry.Manifest.Pages) != want {
		t.Fatalf("manifest for %s has %d pages, want %d", entry.JobID, len(entry.Manifest.Pages), want)
	}
}

func TestGetByJobID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-5", "fp-5", false)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := st.GetByJobID(ctx, job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("nothing committed yet, got %v", err)
	}
	if _, err := st.CommitStage(ctx, job.ID, 1, docFor(job.ID, 2)); err != nil {
		t.Fatalf("CommitStage: %v", err)
	}
	doc, err := st.GetByJobID(ctx, job.ID)
	if err != nil || len(doc.Pages) != 2 {
		t.Fatalf("GetByJobID = %v, %v", doc, err)
	}
	if _, err := st.GetByJobID(ctx, "unknown"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTokensAreStableAndIsolated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.MintToken(ctx, "fp-a"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for uncached fingerprint, got %v", err)
	}
	for _, fp := range []string{"fp-a", "fp-b"} {
		if err := st.Put(ctx, fp, "job-"+fp, docFor(fp, 1)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	first, err := st.MintToken(ctx, "fp-a")
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	second, err := st.MintToken(ctx, "fp-a")
	if err != nil || second != first {
		t.Fatalf("expected stable token, got %q and %q (%v)", first, second, err)
	}
	if len(first) != 32 {
		t.Fatalf("unexpected token %q", first)
	}
	other, err := st.MintToken(ctx, "fp-b")
	if err != nil || other == first {
		t.Fatalf("distinct fingerprints must get distinct tokens: %q %q %v", first, other, err)
	}

	fp, err := st.ResolveToken(ctx, first)
	if err != nil || fp != "fp-a" {
		t.Fatalf("ResolveToken = %q, %v", fp, err)
	}
	if _, err := st.ResolveToken(ctx, "never-minted"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSchemaMismatchIsReported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bumpSchemaVersion(cfg.DatabasePath()); err != nil {
		t.Fatalf("bump schema: %v", err)
	}
	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	locks := store.NewKeyedMutex()
	unlock := locks.Lock("fp")

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("fp")
		close(acquired)
		release()
	}()

	other := locks.Lock("other")
	other()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the key")
	}
	testsupport.Eventually(t, time.Second, "lock table to drain", func() bool {
		return locks.Len() == 0
	})
}

func commitAll(t *testing.T, st *store.Store, job *store.Job) {
	t.Helper()
	ctx := context.Background()
	for i, name := range job.Plan {
		if err := st.MarkStage(ctx, job.ID, name); err != nil {
			t.Fatalf("MarkStage(%s): %v", name, err)
		}
		if _, err := st.CommitStage(ctx, job.ID, i+1, docFor(job.ID, 1)); err != nil {
			t.Fatalf("CommitStage(%d): %v", i+1, err)
		}
	}
}

func TestCompleteMarksDoneAndWritesEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-c", "fp-c", false)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	commitAll(t, st, job)

	newer, err := st.Complete(ctx, "fp-c", job.ID, docFor(job.ID, 2))
	if err != nil || newer != "" {
		t.Fatalf("Complete: newer=%q err=%v", newer, err)
	}
	got, _ := st.GetJob(ctx, job.ID)
	if got.Stage != stage.Done {
		t.Fatalf("expected done, got %s", got.Stage)
	}
	entry, err := st.Get(ctx, "fp-c")
	if err != nil || entry.JobID != job.ID {
		t.Fatalf("expected entry owned by %s, got %+v err=%v", job.ID, entry, err)
	}
}

func TestCompleteLeavesNothingBehindWhenCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("job-x", "fp-x", false)
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	commitAll(t, st, job)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := st.Complete(cancelled, "fp-x", job.ID, docFor(job.ID, 1)); err == nil {
		t.Fatal("expected cancelled completion to fail")
	}
	if _, err := st.Get(ctx, "fp-x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected no cache entry, got %v", err)
	}
	if err := st.SetFailed(ctx, job.ID, "cancelled"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	if _, err := st.Get(ctx, "fp-x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("failed job must not own a cache entry, got %v", err)
	}
}

func TestCompleteKeepsNewerOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	older := newJob("job-older", "fp-tie", false)
	newer := newJob("job-newer", "fp-tie", false)
	for _, job := range []*store.Job{older, newer} {
		if err := st.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		commitAll(t, st, job)
	}
	same := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339Nano)
	for _, id := range []string{older.ID, newer.ID} {
		if err := setCreatedAt(st.Path(), id, same); err != nil {
			t.Fatalf("setCreatedAt: %v", err)
		}
	}

	if owner, err := st.Complete(ctx, "fp-tie", newer.ID, docFor(newer.ID, 3)); err != nil || owner != "" {
		t.Fatalf("Complete newer: owner=%q err=%v", owner, err)
	}
	owner, err := st.Complete(ctx, "fp-tie", older.ID, docFor(older.ID, 1))
	if err != nil {
		t.Fatalf("Complete older: %v", err)
	}
	if owner != newer.ID {
		t.Fatalf("expected %s reported as owner, got %q", newer.ID, owner)
	}
	entry, err := st.Get(ctx, "fp-tie")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.JobID != newer.ID || len(entry.Manifest.Pages) != 3 {
		t.Fatalf("older run overwrote the entry: %+v", entry)
	}
	got, _ := st.GetJob(ctx, older.ID)
	if got.Stage != stage.Done {
		t.Fatalf("older job should still finish, got %s", got.Stage)
	}
}
