package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
)

// maintenanceTag prefixes tags of non-user jobs so they never collide with chat ids.
const maintenanceTag = "maintenance:"

// Job is a daily notification installed for one chat.
type Job struct {
	ChatID string
	Hour   int // host-local
	Minute int
}

// At returns the fire time as HH:MM.
func (j Job) At() string {
	return fmt.Sprintf("%02d:%02d", j.Hour, j.Minute)
}

// UserLister is the slice of the user store Rebuild needs.
type UserLister interface {
	ListNotified(ctx context.Context) ([]domain.User, error)
}

// Service owns one recurring job per subscribed chat, keyed by chat id,
// plus the maintenance jobs. Every firing runs on its own goroutine.
type Service struct {
	mu   sync.Mutex
	cron *gocron.Scheduler
	jobs map[string]Job
	log  *zap.Logger
}

// New creates a Service computing fire times in loc (normally time.Local).
func New(loc *time.Location, log *zap.Logger) *Service {
	c := gocron.NewScheduler(loc)
	c.TagsUnique()
	return &Service{
		cron: c,
		jobs: make(map[string]Job),
		log:  log,
	}
}

// Start begins firing jobs in the background.
func (s *Service) Start() {
	s.cron.StartAsync()
}

// Stop stops the scheduler and cancels any future runs.
func (s *Service) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// Add installs, or replaces, the daily job for chatID at hour:minute host time.
func (s *Service) Add(chatID string, hour, minute int, fn func(chatID string)) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("schedule %s: invalid fire time %02d:%02d", chatID, hour, minute)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[chatID]; ok {
		_ = s.cron.RemoveByTag(chatID)
		delete(s.jobs, chatID)
	}

	j := Job{ChatID: chatID, Hour: hour, Minute: minute}
	_, err := s.cron.Every(1).Day().At(j.At()).Tag(chatID).Do(fn, chatID)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", chatID, err)
	}
	s.jobs[chatID] = j
	s.log.Debug("job scheduled", zap.String("chatID", chatID), zap.String("at", j.At()))
	return nil
}

// Remove cancels the job for chatID. It reports whether a job existed;
// removing an absent job is a no-op.
func (s *Service) Remove(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[chatID]; !ok {
		return false
	}
	if err := s.cron.RemoveByTag(chatID); err != nil {
		s.log.Warn("remove job by tag", zap.String("chatID", chatID), zap.Error(err))
	}
	delete(s.jobs, chatID)
	s.log.Debug("job removed", zap.String("chatID", chatID))
	return true
}

// Has reports whether chatID has a job.
func (s *Service) Has(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[chatID]
	return ok
}

// Job returns the job for chatID, if any.
func (s *Service) Job(chatID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[chatID]
	return j, ok
}

// Len returns the number of user jobs.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Jobs returns a snapshot of user jobs ordered by chat id.
func (s *Service) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ChatID < out[k].ChatID })
	return out
}

// Rebuild installs a job for every stored user with a notification time,
// converting it with the same arithmetic registration uses. It returns the
// number of jobs installed; a bad record is logged and skipped.
func (s *Service) Rebuild(ctx context.Context, users UserLister, fn func(chatID string), systemOffset int) (int, error) {
	list, err := users.ListNotified(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, u := range list {
		if u.Notify == nil {
			continue
		}
		h, m := domain.FireTime(*u.Notify, u.Offset, systemOffset)
		if err := s.Add(u.ChatID, h, m, fn); err != nil {
			s.log.Error("rebuild job failed", zap.String("chatID", u.ChatID), zap.Error(err))
			continue
		}
		n++
	}
	s.log.Info("notification jobs rebuilt", zap.Int("jobs", n))
	return n, nil
}

// Daily runs fn every day at "HH:MM" host time.
func (s *Service) Daily(name, at string, fn func()) error {
	_, err := s.cron.Every(1).Day().At(at).Tag(maintenanceTag + name).Do(s.guard(name, fn))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Every runs fn every d, first run one interval after Start.
func (s *Service) Every(name string, d time.Duration, fn func()) error {
	_, err := s.cron.Every(d).WaitForSchedule().Tag(maintenanceTag + name).Do(s.guard(name, fn))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// guard keeps a panicking maintenance job from taking the process down.
func (s *Service) guard(name string, fn func()) func() {
	return func() {
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("maintenance job panicked", zap.String("job", name), zap.Any("panic", p))
			}
		}()
		fn()
	}
}
