package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/serpens2/weather-bot/internal/domain"
)

func toNullString(n *domain.NotifyTime) sql.NullString {
	if n == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: n.String(), Valid: true}
}

// parseStoredNotify reads a stored notify value. Rows written before values
// were normalized may carry a single-digit minute ("14:5").
func parseStoredNotify(s string) (*domain.NotifyTime, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("%w: stored notify %q", domain.ErrInvalidTimeFormat, s)
	}
	h, herr := strconv.Atoi(strings.TrimSpace(hs))
	m, merr := strconv.Atoi(strings.TrimSpace(ms))
	if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return nil, fmt.Errorf("%w: stored notify %q", domain.ErrInvalidTimeFormat, s)
	}
	return &domain.NotifyTime{Hour: h, Minute: m}, nil
}

// badNotifyError reports a row whose notify column could not be read.
// The row itself is still usable with Notify left nil.
type badNotifyError struct {
	chatID string
	raw    string
	err    error
}

func (e *badNotifyError) Error() string {
	return fmt.Sprintf("user %s: %v", e.chatID, e.err)
}

func (e *badNotifyError) Unwrap() error { return e.err }

// row is satisfied by *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...any) error
}

// scanUser reads one user. An unreadable notify value yields the user with
// Notify nil together with a *badNotifyError.
func scanUser(r row) (*domain.User, error) {
	var (
		u      domain.User
		notify sql.NullString
	)
	if err := r.Scan(&u.ChatID, &u.Lat, &u.Lon, &u.Offset, &notify); err != nil {
		return nil, err
	}
	if !notify.Valid || strings.TrimSpace(notify.String) == "" {
		return &u, nil
	}
	n, err := parseStoredNotify(notify.String)
	if err != nil {
		return &u, &badNotifyError{chatID: u.ChatID, raw: notify.String, err: err}
	}
	u.Notify = n
	return &u, nil
}
