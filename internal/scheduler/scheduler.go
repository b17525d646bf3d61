package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"YieldHarbor/internal/model"
	"YieldHarbor/internal/notifier"
)

// DefaultInterval is the display refresh period.
const DefaultInterval = 5 * time.Second

// WorthSource recomputes displayed worth.
type WorthSource interface {
	RefreshDisplayedWorth(ctx context.Context, id string, now time.Time) (model.Worth, error)
}

// Publisher receives refreshed worth events.
type Publisher interface {
	Publish(e notifier.Event)
}

// Counter is notified on every completed refresh.
type Counter interface {
	Refreshed()
}

// Refresher owns one periodic refresh job per watched identity.
// Each tick recomputes from the current time, so missed ticks are never replayed.
type Refresher struct {
	Cron      *cron.Cron
	Source    WorthSource
	Publisher Publisher
	Counter   Counter
	Ctx       context.Context

	spec string
	now  func() time.Time

	mu   sync.Mutex
	jobs map[string]cron.EntryID
	last map[string]model.Worth
}

// NewRefresher creates a Refresher ticking every interval.
func NewRefresher(ctx context.Context, src WorthSource, pub Publisher, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		Source:    src,
		Publisher: pub,
		Ctx:       ctx,
		spec:      fmt.Sprintf("@every %s", interval),
		now:       time.Now,
		jobs:      map[string]cron.EntryID{},
		last:      map[string]model.Worth{},
	}
}

// Start starts the cron scheduler.
func (r *Refresher) Start() {
	r.Cron.Start()
	log.Printf("[INFO] refresher started (%s)", r.spec)
}

// Stop stops the scheduler and waits for running ticks.
func (r *Refresher) Stop() {
	<-r.Cron.Stop().Done()
	log.Println("[INFO] refresher stopped")
}

// Watch schedules refreshes for id and runs one immediately. Watching twice is a no-op.
func (r *Refresher) Watch(id string) error {
	r.mu.Lock()
	if _, ok := r.jobs[id]; ok {
		r.mu.Unlock()
		return nil
	}
	entry, err := r.Cron.AddFunc(r.spec, func() { r.tick(id) })
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("register refresh for %s: %w", id, err)
	}
	r.jobs[id] = entry
	r.mu.Unlock()

	r.tick(id)
	return nil
}

// Unwatch removes the job for id and forgets its last worth.
func (r *Refresher) Unwatch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.jobs[id]; ok {
		r.Cron.Remove(entry)
		delete(r.jobs, id)
		delete(r.last, id)
	}
}

// Watching reports whether id has an active job.
func (r *Refresher) Watching(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	return ok
}

// Kick refreshes id now if it is watched.
func (r *Refresher) Kick(id string) {
	if r.Watching(id) {
		r.tick(id)
	}
}

// Last returns the most recent worth computed for id.
func (r *Refresher) Last(id string) (model.Worth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.last[id]
	return w, ok
}

func (r *Refresher) tick(id string) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[ERROR] refresh %s panicked: %v", id, p)
		}
	}()
	w, err := r.Source.RefreshDisplayedWorth(r.Ctx, id, r.now())
	if err != nil {
		log.Printf("[ERROR] refresh %s: %v", id, err)
		return
	}
	r.mu.Lock()
	if _, ok := r.jobs[id]; !ok {
		// unwatched while computing
		r.mu.Unlock()
		return
	}
	r.last[id] = w
	r.mu.Unlock()

	if r.Counter != nil {
		r.Counter.Refreshed()
	}
	if r.Publisher != nil {
		r.Publisher.Publish(notifier.WorthEvent(w))
	}
}
