// Package subscription keeps the user store and the notification job table
// in step. Every operation for a chat id runs under that chat's lock, and the
// store write and the job change either both happen or neither does.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
	"github.com/serpens2/weather-bot/internal/store"
)

// Jobs is the part of the scheduler the manager drives.
type Jobs interface {
	Add(chatID string, hour, minute int, fn func(chatID string)) error
	Remove(chatID string) bool
	Has(chatID string) bool
}

// Manager registers and removes users together with their daily job.
type Manager struct {
	repo         store.Repo
	jobs         Jobs
	notify       func(chatID string)
	systemOffset func() int
	log          *zap.Logger

	locks keyedMutex
}

// New creates a Manager. notify is the callback installed for every job;
// systemOffset reports the host's UTC offset in hours.
func New(repo store.Repo, jobs Jobs, notify func(chatID string), systemOffset func() int, log *zap.Logger) *Manager {
	if systemOffset == nil {
		systemOffset = domain.LocalSystemOffset
	}
	return &Manager{
		repo:         repo,
		jobs:         jobs,
		notify:       notify,
		systemOffset: systemOffset,
		log:          log,
	}
}

// Get returns the stored user.
func (m *Manager) Get(ctx context.Context, chatID string) (*domain.User, error) {
	return m.repo.GetUser(ctx, chatID)
}

// Register stores a new user and, if a notify time is set, installs its job.
// An existing record is never overwritten: domain.ErrAlreadyRegistered.
func (m *Manager) Register(ctx context.Context, u domain.User) error {
	unlock := m.locks.Lock(u.ChatID)
	defer unlock()

	installed := false
	err := m.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		if u.Notify != nil {
			if err := m.install(u.ChatID, *u.Notify, u.Offset); err != nil {
				return err
			}
			installed = true
		}
		return nil
	})
	if err != nil && installed {
		// The commit failed after the job went in.
		m.jobs.Remove(u.ChatID)
	}
	if err != nil {
		return err
	}
	m.log.Info("user registered", zap.String("chatID", u.ChatID), zap.Bool("notify", u.Notify != nil))
	return nil
}

// Delete removes the user and its job. It returns the deleted record.
func (m *Manager) Delete(ctx context.Context, chatID string) (*domain.User, error) {
	unlock := m.locks.Lock(chatID)
	defer unlock()

	var prev *domain.User
	err := m.repo.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, chatID)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteUser(ctx, chatID); err != nil {
			return err
		}
		prev = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.dropJob(prev)
	m.log.Info("user deleted", zap.String("chatID", chatID))
	return prev, nil
}

// ClearNotify turns daily notifications off for chatID, keeping the record.
func (m *Manager) ClearNotify(ctx context.Context, chatID string) (*domain.User, error) {
	unlock := m.locks.Lock(chatID)
	defer unlock()

	var prev *domain.User
	err := m.repo.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, chatID)
		if err != nil {
			return err
		}
		if u.Notify != nil {
			if err := tx.SetNotify(ctx, chatID, nil); err != nil {
				return err
			}
		}
		prev = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.dropJob(prev)
	return prev, nil
}

// SetNotify changes the notify time of an existing user (nil turns it off).
func (m *Manager) SetNotify(ctx context.Context, chatID string, n *domain.NotifyTime) error {
	unlock := m.locks.Lock(chatID)
	defer unlock()

	var (
		prev      *domain.User
		installed bool
	)
	err := m.repo.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, chatID)
		if err != nil {
			return err
		}
		prev = u
		if err := tx.SetNotify(ctx, chatID, n); err != nil {
			return err
		}
		if n != nil {
			if err := m.install(chatID, *n, u.Offset); err != nil {
				return err
			}
			installed = true
		}
		return nil
	})
	if err != nil {
		if installed {
			m.restore(chatID, prev)
		}
		return err
	}
	if n == nil {
		m.dropJob(prev)
	}
	m.log.Info("notify time changed", zap.String("chatID", chatID), zap.Bool("notify", n != nil))
	return nil
}

func (m *Manager) install(chatID string, n domain.NotifyTime, offset int) error {
	hour, minute := domain.FireTime(n, offset, m.systemOffset())
	if err := m.jobs.Add(chatID, hour, minute, m.notify); err != nil {
		return fmt.Errorf("install job: %w", err)
	}
	return nil
}

// restore puts the job table back to what prev describes.
func (m *Manager) restore(chatID string, prev *domain.User) {
	if prev == nil || prev.Notify == nil {
		m.jobs.Remove(chatID)
		return
	}
	if err := m.install(prev.ChatID, *prev.Notify, prev.Offset); err != nil {
		m.log.Error("restore job failed", zap.String("chatID", prev.ChatID), zap.Error(err))
	}
}

// dropJob removes the job a record implied. Removal is guarded: only records
// with a notify time had a job, and a missing job is reported, not ignored.
func (m *Manager) dropJob(u *domain.User) {
	if u == nil || u.Notify == nil {
		return
	}
	if !m.jobs.Has(u.ChatID) {
		m.log.Warn("record had notify time but no job", zap.String("chatID", u.ChatID))
		return
	}
	m.jobs.Remove(u.ChatID)
}

// IsNotFound reports whether err means the chat has no record.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrUserNotFound)
}
