package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a named unit of background work. Run is given a context that is
// cancelled on Stop and additionally deadlined to the job's interval, so
// a hung run can never overlap the next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type task struct {
	job        Job
	interval   time.Duration
	runOnStart bool
}

// Scheduler drives registered jobs on fixed intervals, one goroutine per
// job. A panic or error in a run is logged; the job stays scheduled.
type Scheduler struct {
	tasks  []task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Add registers a job to run every interval, starting one interval from
// Start.
func (s *Scheduler) Add(job Job, interval time.Duration) {
	s.tasks = append(s.tasks, task{job: job, interval: interval})
}

// AddWithStartupRun registers a job that also runs once right away,
// before its first tick.
func (s *Scheduler) AddWithStartupRun(job Job, interval time.Duration) {
	s.tasks = append(s.tasks, task{job: job, interval: interval, runOnStart: true})
}

// Start launches every registered job. Call at most once.
func (s *Scheduler) Start() {
	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t task) {
			defer s.wg.Done()
			s.loop(t)
		}(t)
	}
	log.Printf("scheduler started with %d jobs", len(s.tasks))
}

// Stop cancels all running jobs and blocks until their goroutines exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Println("scheduler stopped")
}

func (s *Scheduler) loop(t task) {
	if t.runOnStart {
		s.runOnce(t)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(t)
		}
	}
}

func (s *Scheduler) runOnce(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: job %q panicked: %v", t.job.Name(), r)
		}
	}()

	runCtx, cancel := context.WithTimeout(s.ctx, t.interval)
	defer cancel()

	start := time.Now()
	if err := t.job.Run(runCtx); err != nil {
		log.Printf("scheduler: job %q failed after %s: %v", t.job.Name(), time.Since(start).Round(time.Millisecond), err)
	}
}
