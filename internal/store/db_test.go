package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/serpens2/weather-bot/internal/domain"
)

func openTestRepo(t *testing.T) *SQLRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "weatherbot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func insert(t *testing.T, repo *SQLRepo, u domain.User) {
	t.Helper()
	err := repo.WithTx(context.Background(), func(tx Tx) error {
		return tx.InsertUser(context.Background(), u)
	})
	if err != nil {
		t.Fatalf("insert %s: %v", u.ChatID, err)
	}
}

func TestInsertAndGetUser(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	insert(t, repo, domain.User{ChatID: "111", Lat: 52, Lon: 13, Offset: 1, Notify: &domain.NotifyTime{Hour: 9}})

	u, err := repo.GetUser(ctx, "111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Lat != 52 || u.Lon != 13 || u.Offset != 1 {
		t.Fatalf("unexpected record: %+v", u)
	}
	if u.Notify == nil || u.Notify.String() != "09:00" {
		t.Fatalf("want notify 09:00, got %v", u.Notify)
	}

	if _, err := repo.GetUser(ctx, "222"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestInsertUser_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	insert(t, repo, domain.User{ChatID: "111", Lat: 1, Lon: 2})
	err := repo.WithTx(ctx, func(tx Tx) error {
		return tx.InsertUser(ctx, domain.User{ChatID: "111", Lat: 3, Lon: 4})
	})
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("want ErrAlreadyRegistered, got %v", err)
	}

	u, err := repo.GetUser(ctx, "111")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Lat != 1 {
		t.Fatalf("record was overwritten: %+v", u)
	}
	if n, _ := repo.CountUsers(ctx); n != 1 {
		t.Fatalf("want 1 user, got %d", n)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertUser(ctx, domain.User{ChatID: "111"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if _, err := repo.GetUser(ctx, "111"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("insert was not rolled back: %v", err)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = repo.WithTx(ctx, func(tx Tx) error {
			_ = tx.InsertUser(ctx, domain.User{ChatID: "111"})
			panic("boom")
		})
	}()

	if _, err := repo.GetUser(ctx, "111"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("insert was not rolled back: %v", err)
	}
}

func TestDeleteAndSetNotify(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	insert(t, repo, domain.User{ChatID: "111", Notify: &domain.NotifyTime{Hour: 7, Minute: 30}})
	insert(t, repo, domain.User{ChatID: "222"})

	notified, err := repo.ListNotified(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notified) != 1 || notified[0].ChatID != "111" {
		t.Fatalf("unexpected notified users: %+v", notified)
	}

	err = repo.WithTx(ctx, func(tx Tx) error {
		if err := tx.SetNotify(ctx, "111", nil); err != nil {
			return err
		}
		return tx.SetNotify(ctx, "222", &domain.NotifyTime{Hour: 21, Minute: 5})
	})
	if err != nil {
		t.Fatalf("set notify: %v", err)
	}
	notified, _ = repo.ListNotified(ctx)
	if len(notified) != 1 || notified[0].ChatID != "222" || notified[0].Notify.String() != "21:05" {
		t.Fatalf("unexpected notified users after update: %+v", notified)
	}

	err = repo.WithTx(ctx, func(tx Tx) error {
		return tx.SetNotify(ctx, "333", nil)
	})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound for missing user, got %v", err)
	}

	var deleted, again bool
	err = repo.WithTx(ctx, func(tx Tx) error {
		var err error
		if deleted, err = tx.DeleteUser(ctx, "111"); err != nil {
			return err
		}
		again, err = tx.DeleteUser(ctx, "111")
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted || again {
		t.Fatalf("want deleted=true again=false, got %v %v", deleted, again)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weatherbot.db")

	repo, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	insert(t, repo, domain.User{ChatID: "111"})
	_ = repo.Close()

	repo, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer repo.Close()
	if n, err := repo.CountUsers(ctx); err != nil || n != 1 {
		t.Fatalf("want 1 user after reopen, got %d (%v)", n, err)
	}
}

func TestRebindPostgres(t *testing.T) {
	got := dialect(DriverPostgres).rebind(`UPDATE t SET a = ? WHERE b = ?`)
	if got != `UPDATE t SET a = $1 WHERE b = $2` {
		t.Fatalf("unexpected rebind: %s", got)
	}
	if got := dialect(DriverSQLite).rebind(`a = ?`); got != `a = ?` {
		t.Fatalf("sqlite query should be unchanged: %s", got)
	}
}

func TestLegacyNotifyRows(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	rows := [][2]string{{"1", "09:00"}, {"2", "14:5"}, {"3", "soon"}}
	for _, r := range rows {
		_, err := repo.db.ExecContext(ctx,
			`INSERT INTO weatherbot (chat_id, lat, lon, tz_offset, notify) VALUES (?, 1, 2, 0, ?)`, r[0], r[1])
		if err != nil {
			t.Fatalf("insert %s: %v", r[0], err)
		}
	}

	list, err := repo.ListNotified(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ChatID != "1" || list[1].ChatID != "2" {
		t.Fatalf("want users 1 and 2, got %+v", list)
	}
	if got := list[1].Notify.String(); got != "14:05" {
		t.Fatalf("want 14:05, got %s", got)
	}

	u, err := repo.GetUser(ctx, "3")
	if err != nil {
		t.Fatalf("unreadable notify should not fail get: %v", err)
	}
	if u.Notify != nil {
		t.Fatalf("want nil notify, got %v", u.Notify)
	}

	var deleted bool
	err = repo.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetUser(ctx, "3"); err != nil {
			return err
		}
		deleted, err = tx.DeleteUser(ctx, "3")
		return err
	})
	if err != nil || !deleted {
		t.Fatalf("want user 3 deletable, got %v (%v)", deleted, err)
	}
}

func TestParseStoredNotify(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"09:00", "09:00", true},
		{"9:00", "09:00", true},
		{"14:5", "14:05", true},
		{" 23:59 ", "23:59", true},
		{"24:00", "", false},
		{"12:60", "", false},
		{"noon", "", false},
	}
	for _, tt := range tests {
		n, err := parseStoredNotify(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("%q: want ok=%v, got err %v", tt.in, tt.ok, err)
		}
		if tt.ok && n.String() != tt.want {
			t.Fatalf("%q: want %s, got %s", tt.in, tt.want, n)
		}
	}
}
