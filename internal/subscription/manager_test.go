package subscription

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/scheduler"
	"github.com/serpens2/weather-bot/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.SQLRepo, *scheduler.Service) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	jobs := scheduler.New(time.UTC, zap.NewNop())
	m := New(repo, jobs, func(string) {}, func() int { return 0 }, zap.NewNop())
	return m, repo, jobs
}

func notifyAt(h, m int) *domain.NotifyTime {
	return &domain.NotifyTime{Hour: h, Minute: m}
}

func TestRegister_InstallsJobAtFireTime(t *testing.T) {
	m, repo, jobs := newTestManager(t)
	ctx := context.Background()

	err := m.Register(ctx, domain.User{ChatID: "111", Lat: 52, Lon: 13, Offset: 1, Notify: notifyAt(9, 0)})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := repo.GetUser(ctx, "111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Notify.String() != "09:00" {
		t.Fatalf("want stored 09:00, got %s", u.Notify)
	}
	j, ok := jobs.Job("111")
	if !ok || j.At() != "08:00" {
		t.Fatalf("want job at 08:00, got %+v (%v)", j, ok)
	}
}

func TestRegister_WithoutNotifyHasNoJob(t *testing.T) {
	m, _, jobs := newTestManager(t)
	if err := m.Register(context.Background(), domain.User{ChatID: "111"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if jobs.Has("111") {
		t.Fatalf("no job expected without notify time")
	}
}

func TestRegister_Twice(t *testing.T) {
	m, repo, jobs := newTestManager(t)
	ctx := context.Background()

	if err := m.Register(ctx, domain.User{ChatID: "111", Offset: 2, Notify: notifyAt(14, 0)}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := m.Register(ctx, domain.User{ChatID: "111", Offset: 0, Notify: notifyAt(6, 0)})
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("want ErrAlreadyRegistered, got %v", err)
	}
	if n, _ := repo.CountUsers(ctx); n != 1 {
		t.Fatalf("want 1 record, got %d", n)
	}
	if j, _ := jobs.Job("111"); j.At() != "12:00" {
		t.Fatalf("job changed by rejected registration: %+v", j)
	}
}

func TestDelete_RemovesExactlyOneJob(t *testing.T) {
	m, _, jobs := newTestManager(t)
	ctx := context.Background()

	_ = m.Register(ctx, domain.User{ChatID: "111", Notify: notifyAt(9, 0)})
	_ = m.Register(ctx, domain.User{ChatID: "222", Notify: notifyAt(10, 0)})
	_ = m.Register(ctx, domain.User{ChatID: "333"})

	prev, err := m.Delete(ctx, "111")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if prev.ChatID != "111" {
		t.Fatalf("unexpected deleted record: %+v", prev)
	}
	if jobs.Has("111") || !jobs.Has("222") || jobs.Len() != 1 {
		t.Fatalf("want only 222 scheduled, got %+v", jobs.Jobs())
	}

	if _, err := m.Delete(ctx, "333"); err != nil {
		t.Fatalf("delete 333: %v", err)
	}
	if jobs.Len() != 1 || !jobs.Has("222") {
		t.Fatalf("deleting a user without notify touched the scheduler: %+v", jobs.Jobs())
	}

	if _, err := m.Delete(ctx, "444"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestClearAndSetNotify(t *testing.T) {
	m, repo, jobs := newTestManager(t)
	ctx := context.Background()
	_ = m.Register(ctx, domain.User{ChatID: "111", Offset: 3, Notify: notifyAt(9, 0)})

	prev, err := m.ClearNotify(ctx, "111")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if prev.Notify == nil || prev.Offset != 3 {
		t.Fatalf("clear should return the previous record: %+v", prev)
	}
	if jobs.Has("111") {
		t.Fatalf("job survived ClearNotify")
	}
	if u, _ := repo.GetUser(ctx, "111"); u.Notify != nil {
		t.Fatalf("stored notify survived ClearNotify: %v", u.Notify)
	}

	if err := m.SetNotify(ctx, "111", notifyAt(7, 15)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if j, _ := jobs.Job("111"); j.At() != "04:15" {
		t.Fatalf("want job at 04:15, got %+v", j)
	}

	if err := m.SetNotify(ctx, "111", nil); err != nil {
		t.Fatalf("set nil: %v", err)
	}
	if jobs.Has("111") {
		t.Fatalf("job survived SetNotify(nil)")
	}

	if err := m.SetNotify(ctx, "999", notifyAt(7, 0)); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
	if jobs.Has("999") {
		t.Fatalf("job installed for unknown user")
	}
}

// failingCommit rolls back every transaction after fn succeeds.
type failingCommit struct {
	store.Repo
}

var errCommit = errors.New("commit failed")

func (f failingCommit) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return f.Repo.WithTx(ctx, func(tx store.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errCommit
	})
}

func TestRegister_FailedCommitLeavesNoJob(t *testing.T) {
	_, repo, jobs := newTestManager(t)
	m := New(failingCommit{repo}, jobs, func(string) {}, func() int { return 0 }, zap.NewNop())

	err := m.Register(context.Background(), domain.User{ChatID: "111", Notify: notifyAt(9, 0)})
	if !errors.Is(err, errCommit) {
		t.Fatalf("want errCommit, got %v", err)
	}
	if jobs.Has("111") {
		t.Fatalf("job left behind without a record")
	}
}

func TestSetNotify_FailedCommitRestoresJob(t *testing.T) {
	good, repo, jobs := newTestManager(t)
	ctx := context.Background()
	_ = good.Register(ctx, domain.User{ChatID: "111", Notify: notifyAt(9, 0)})

	m := New(failingCommit{repo}, jobs, func(string) {}, func() int { return 0 }, zap.NewNop())
	if err := m.SetNotify(ctx, "111", notifyAt(18, 0)); !errors.Is(err, errCommit) {
		t.Fatalf("want errCommit, got %v", err)
	}
	if j, _ := jobs.Job("111"); j.At() != "09:00" {
		t.Fatalf("want original job restored at 09:00, got %+v", j)
	}
}

func TestConcurrentRegisterDelete_StaysConsistent(t *testing.T) {
	m, repo, jobs := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Register(ctx, domain.User{ChatID: "111", Notify: notifyAt(9, 0)})
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Delete(ctx, "111")
		}()
	}
	wg.Wait()

	_, err := repo.GetUser(ctx, "111")
	hasRecord := err == nil
	if hasRecord != jobs.Has("111") {
		t.Fatalf("record present=%v but job present=%v", hasRecord, jobs.Has("111"))
	}
}
