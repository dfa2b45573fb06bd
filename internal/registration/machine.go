package registration

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/domain"
)

// Resolver turns raw location input into coordinates and an offset.
type Resolver interface {
	ResolveByCoordinates(ctx context.Context, lat, lon float64) (int, error)
	ResolveByCity(ctx context.Context, name string) (domain.Location, error)
}

// Accounts persists registrations together with their notification job.
type Accounts interface {
	Get(ctx context.Context, chatID string) (*domain.User, error)
	Register(ctx context.Context, u domain.User) error
	Delete(ctx context.Context, chatID string) (*domain.User, error)
	ClearNotify(ctx context.Context, chatID string) (*domain.User, error)
	SetNotify(ctx context.Context, chatID string, n *domain.NotifyTime) error
}

// Machine holds one Session per chat and turns chat events into replies.
type Machine struct {
	resolver Resolver
	accounts Accounts
	log      *zap.Logger
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option customizes a Machine.
type Option func(*Machine)

// WithTTL drops sessions idle for longer than ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(m *Machine) { m.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates a Machine.
func New(resolver Resolver, accounts Accounts, log *zap.Logger, opts ...Option) *Machine {
	m := &Machine{
		resolver: resolver,
		accounts: accounts,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start begins registration unless the chat is already registered.
func (m *Machine) Start(ctx context.Context, chatID string) []Reply {
	_, err := m.accounts.Get(ctx, chatID)
	switch {
	case err == nil:
		m.drop(chatID)
		return []Reply{{Text: AlreadyRegisteredText}}
	case !errors.Is(err, domain.ErrUserNotFound):
		return m.failure(chatID, "lookup user", err)
	}
	return m.begin(chatID)
}

// Update deletes the current registration and starts a new one straight away.
func (m *Machine) Update(ctx context.Context, chatID string) []Reply {
	if _, err := m.accounts.Delete(ctx, chatID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return []Reply{{Text: NotRegisteredText}}
		}
		return m.failure(chatID, "delete for update", err)
	}
	return m.begin(chatID)
}

// ChangeTime keeps the stored location and asks for a new notify time.
// The old job is cancelled immediately.
func (m *Machine) ChangeTime(ctx context.Context, chatID string) []Reply {
	prev, err := m.accounts.ClearNotify(ctx, chatID)
	if err != nil {
		m.drop(chatID)
		if errors.Is(err, domain.ErrUserNotFound) {
			return []Reply{{Text: NotRegisteredText}}
		}
		return m.failure(chatID, "clear notify", err)
	}
	loc := prev.Location()
	s := &Session{ChatID: chatID, Location: &loc, ChangingTime: true}
	s.apply(EventChangeTime)
	m.put(s)
	return []Reply{{Text: askNotifyText, Keyboard: KeyboardNotifyChoice}}
}

// Delete removes the registration and any session in progress.
func (m *Machine) Delete(ctx context.Context, chatID string) []Reply {
	if _, err := m.accounts.Delete(ctx, chatID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return []Reply{{Text: NotRegisteredText}}
		}
		return m.failure(chatID, "delete user", err)
	}
	m.drop(chatID)
	return []Reply{{Text: DeletedText}}
}

// ChooseMethod records which of the three location paths the user picked.
func (m *Machine) ChooseMethod(ctx context.Context, chatID string, method Method) []Reply {
	s := m.session(chatID)
	if s == nil || !s.apply(EventChooseMethod) {
		return m.stale(ctx, chatID)
	}
	s.Method = method
	m.put(s)

	switch method {
	case MethodGPS:
		return []Reply{{Text: shareLocationText, Keyboard: KeyboardShareLocation}}
	case MethodCity:
		return []Reply{{Text: typeCityText}}
	default:
		return []Reply{{Text: manualText, HTML: true}}
	}
}

// Location handles a shared GPS position.
func (m *Machine) Location(ctx context.Context, chatID string, lat, lon float64) []Reply {
	s := m.session(chatID)
	if s == nil || (s.State != StateAwaitingLocationChoice && s.State != StateAwaitingCoordinates) {
		return m.stale(ctx, chatID)
	}
	offset, err := m.resolver.ResolveByCoordinates(ctx, lat, lon)
	if err != nil {
		return m.retry(s, couldntReceiveText, err)
	}
	return m.located(s, domain.Location{Lat: lat, Lon: lon, Offset: offset})
}

// Text handles free text according to the session state.
func (m *Machine) Text(ctx context.Context, chatID, text string) []Reply {
	s := m.session(chatID)
	if s == nil {
		return []Reply{{Text: UnknownText}}
	}

	switch s.State {
	case StateAwaitingLocationChoice:
		return []Reply{{Text: chooseOptionText, Keyboard: KeyboardLocationOptions}}

	case StateAwaitingCoordinates:
		switch s.Method {
		case MethodCity:
			loc, err := m.resolver.ResolveByCity(ctx, text)
			if err != nil {
				return m.retry(s, unknownCityText, err)
			}
			return m.located(s, loc)
		case MethodManual:
			lat, lon, err := domain.ParseCoordinates(text)
			if err != nil {
				return m.retry(s, invalidCoordsText, err)
			}
			offset, err := m.resolver.ResolveByCoordinates(ctx, lat, lon)
			if err != nil {
				return m.retry(s, couldntReceiveText, err)
			}
			return m.located(s, domain.Location{Lat: lat, Lon: lon, Offset: offset})
		default:
			return []Reply{{Text: pressButtonText, Keyboard: KeyboardShareLocation}}
		}

	case StateAwaitingNotifyChoice:
		return []Reply{{Text: askNotifyText, Keyboard: KeyboardNotifyChoice}}

	case StateAwaitingNotifyTime:
		n, err := domain.ParseNotifyTime(text)
		if err != nil {
			m.log.Info("invalid notify time", zap.String("chatID", chatID), zap.Error(err))
			s.apply(EventTimeRejected)
			m.put(s)
			return []Reply{{Text: invalidTimeText}}
		}
		s.apply(EventTimeAccepted)
		return m.complete(ctx, s, &n)
	}
	return []Reply{{Text: UnknownText}}
}

// Notify handles the yes/no answer to daily forecasts.
func (m *Machine) Notify(ctx context.Context, chatID string, yes bool) []Reply {
	s := m.session(chatID)
	if s == nil {
		return m.stale(ctx, chatID)
	}
	if yes {
		if !s.apply(EventNotifyYes) {
			return m.stale(ctx, chatID)
		}
		m.put(s)
		return []Reply{{Text: askTimeText}}
	}
	if !s.apply(EventNotifyNo) {
		return m.stale(ctx, chatID)
	}
	return m.complete(ctx, s, nil)
}

// Session returns a copy of the chat's live session.
func (m *Machine) Session(chatID string) (Session, bool) {
	s := m.session(chatID)
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// Len returns the number of live sessions.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap drops sessions idle longer than the TTL and returns how many went.
func (m *Machine) Reap() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *Machine) begin(chatID string) []Reply {
	s := &Session{ChatID: chatID}
	s.apply(EventStart)
	m.put(s)
	return []Reply{{Text: StartText, Keyboard: KeyboardLocationOptions}}
}

func (m *Machine) located(s *Session, loc domain.Location) []Reply {
	s.apply(EventLocationResolved)
	s.Location = &loc
	m.put(s)
	return []Reply{
		{Text: gotItText, Keyboard: KeyboardRemove},
		{Text: askNotifyText, Keyboard: KeyboardNotifyChoice},
	}
}

// retry sends the session back to the location choice with partial data cleared.
func (m *Machine) retry(s *Session, text string, err error) []Reply {
	m.log.Info("location resolution failed", zap.String("chatID", s.ChatID), zap.Error(err))
	s.apply(EventResolutionFailed)
	s.Method = MethodNone
	s.Location = nil
	m.put(s)
	return []Reply{
		{Text: text, Keyboard: KeyboardRemove},
		{Text: tryAgainText, Keyboard: KeyboardLocationOptions},
	}
}

func (m *Machine) complete(ctx context.Context, s *Session, n *domain.NotifyTime) []Reply {
	m.drop(s.ChatID)
	if s.Location == nil {
		return m.failure(s.ChatID, "complete", errors.New("session has no location"))
	}

	if s.ChangingTime {
		if err := m.accounts.SetNotify(ctx, s.ChatID, n); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return []Reply{{Text: NotRegisteredText}}
			}
			return m.failure(s.ChatID, "set notify", err)
		}
		return []Reply{{Text: notifyChangedText}}
	}

	u := domain.User{
		ChatID: s.ChatID,
		Lat:    s.Location.Lat,
		Lon:    s.Location.Lon,
		Offset: s.Location.Offset,
		Notify: n,
	}
	if err := m.accounts.Register(ctx, u); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			return []Reply{{Text: AlreadyRegisteredText}}
		}
		return m.failure(s.ChatID, "register", err)
	}
	return []Reply{{Text: CompletedText}}
}

// stale answers a button or location that does not fit the current state.
func (m *Machine) stale(ctx context.Context, chatID string) []Reply {
	if _, err := m.accounts.Get(ctx, chatID); err == nil {
		return []Reply{{Text: AlreadyRegisteredText}}
	}
	return []Reply{{Text: NotRegisteredText}}
}

func (m *Machine) failure(chatID, op string, err error) []Reply {
	m.log.Error("registration step failed", zap.String("chatID", chatID), zap.String("op", op), zap.Error(err))
	return []Reply{{Text: GenericFailureText}}
}

func (m *Machine) session(chatID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return nil
	}
	if m.expired(s) {
		delete(m.sessions, chatID)
		return nil
	}
	cp := *s
	return &cp
}

func (m *Machine) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.touched) > m.ttl
}

func (m *Machine) put(s *Session) {
	s.touched = m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ChatID] = s
}

func (m *Machine) drop(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
