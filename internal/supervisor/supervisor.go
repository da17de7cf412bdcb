// Package supervisor owns the per-owner connection lifecycle: setup, pairing,
// reconnect with a bounded retry budget, terminal teardown and logout.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
	"github.com/talkincode/autoaccept/internal/apperr"
	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify"
	"github.com/talkincode/autoaccept/internal/platform"
	"github.com/talkincode/autoaccept/internal/session"
	"github.com/talkincode/autoaccept/internal/timers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 3
	DefaultQRCooldown           = 30 * time.Second
	DefaultPairingTimeout       = 60 * time.Second
	DefaultPairingRetries       = 3
	DefaultLogoutTimeout        = 10 * time.Second

	qrImageSize = 256
)

// CredentialStore keeps the platform re-authentication material of an owner.
type CredentialStore interface {
	Ensure(ownerID int64) error
	Load(ctx context.Context, ownerID int64) (platform.Credentials, error)
	Delete(ownerID int64) error
	Exists(ownerID int64) bool
}

// Attacher starts auto-accept processing on a connection.
type Attacher interface {
	Attach(ownerID int64, conn platform.Connection) (detach func())
}

type Deps struct {
	Store    *session.Store
	Creds    CredentialStore
	Dialer   platform.Dialer
	Notifier notify.Notifier
	Engine   Attacher
	Timers   *timers.OwnerTimers
}

type Options struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	QRCooldown           time.Duration
	PairingTimeout       time.Duration
	PairingRetries       int
}

func (o *Options) setDefaults() {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.QRCooldown <= 0 {
		o.QRCooldown = DefaultQRCooldown
	}
	if o.PairingTimeout <= 0 {
		o.PairingTimeout = DefaultPairingTimeout
	}
	if o.PairingRetries <= 0 {
		o.PairingRetries = DefaultPairingRetries
	}
}

// link is everything bound to one live handle.
type link struct {
	conn        platform.Connection
	creds       platform.Credentials
	reconnect   bool
	unsubscribe func()
	detach      func()
}

func (l *link) release() {
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
	if l.detach != nil {
		l.detach()
		l.detach = nil
	}
}

type Supervisor struct {
	store    *session.Store
	creds    CredentialStore
	dialer   platform.Dialer
	notifier notify.Notifier
	engine   Attacher
	timers   *timers.OwnerTimers
	opts     Options
	now      func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
	links map[int64]*link
}

func New(deps Deps, opts Options) *Supervisor {
	opts.setDefaults()
	tm := deps.Timers
	if tm == nil {
		tm = timers.New()
	}
	return &Supervisor{
		store:    deps.Store,
		creds:    deps.Creds,
		dialer:   deps.Dialer,
		notifier: deps.Notifier,
		engine:   deps.Engine,
		timers:   tm,
		opts:     opts,
		now:      time.Now,
		locks:    make(map[int64]*sync.Mutex),
		links:    make(map[int64]*link),
	}
}

// ownerLock serializes state changes of one owner without blocking others.
func (s *Supervisor) ownerLock(ownerID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ownerID] = l
	}
	return l
}

func (s *Supervisor) current(ownerID int64) *link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[ownerID]
}

func (s *Supervisor) setLink(ownerID int64, l *link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		delete(s.links, ownerID)
		return
	}
	s.links[ownerID] = l
}

func (s *Supervisor) log(ownerID int64) *zap.Logger {
	return zap.L().With(zap.String("namespace", "supervisor"), zap.Int64("owner_id", ownerID))
}

// Connect opens a new handle for the owner. A reconnect keeps the owner's
// policy and suppresses the setup-failure notification.
func (s *Supervisor) Connect(ctx context.Context, ownerID int64, isReconnect bool) error {
	log := s.log(ownerID)
	lock := s.ownerLock(ownerID)
	lock.Lock()

	conn, err := s.open(ctx, ownerID, isReconnect)
	lock.Unlock()
	if err != nil {
		log.Error("connection setup failed", zap.Bool("reconnect", isReconnect), zap.Error(err))
		if !isReconnect {
			notify.Send(ctx, s.notifier, ownerID, notify.Text(setupFailedText(err)))
		}
		return err
	}

	// A logout or a newer handle may have replaced conn since the lock was
	// released; a replaced handle must not go online.
	if !s.isCurrent(ownerID, conn) {
		log.Info("handle replaced before connect, skipping")
		conn.Disconnect()
		return nil
	}
	if err := conn.Connect(); err != nil {
		log.Warn("connect failed, handing over to reconnect", zap.Error(err))
		s.Dispatch(ownerID, conn, platform.ConnectionUpdate{State: platform.StateClosed, Reason: err.Error()})
		return nil
	}
	if !s.isCurrent(ownerID, conn) {
		log.Info("handle replaced while connecting, disconnecting")
		conn.Disconnect()
	}
	return nil
}

// isCurrent reports, under the owner lock, whether conn is still the
// owner's live handle.
func (s *Supervisor) isCurrent(ownerID int64, conn platform.Connection) bool {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()
	l := s.current(ownerID)
	return l != nil && l.conn == conn
}

// open builds and records the handle; the caller holds the owner lock.
func (s *Supervisor) open(ctx context.Context, ownerID int64, isReconnect bool) (platform.Connection, error) {
	if err := s.creds.Ensure(ownerID); err != nil {
		return nil, apperr.Wrap(apperr.ErrConnectionSetup, errors.Wrap(err, "prepare credential storage"))
	}
	creds, err := s.creds.Load(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConnectionSetup, errors.Wrap(err, "load credentials"))
	}
	conn, err := s.dialer.Open(ctx, ownerID, creds)
	if err != nil {
		_ = creds.Close()
		return nil, apperr.Wrap(apperr.ErrConnectionSetup, errors.Wrap(err, "build connection"))
	}

	if prev := s.current(ownerID); prev != nil {
		prev.release()
		prev.conn.Disconnect()
		if prev.creds != nil && prev.creds != creds {
			_ = prev.creds.Close()
		}
	}

	s.store.Upsert(ownerID, func(sess *domain.OwnerSession) {
		if !isReconnect {
			sess.Reset()
		}
		sess.Conn = conn
		sess.State = domain.StateConnecting
		sess.Connected = false
		sess.HandlerAttached = false
	})

	l := &link{conn: conn, creds: creds, reconnect: isReconnect}
	l.unsubscribe = conn.Subscribe(func(evt platform.Event) {
		switch e := evt.(type) {
		case platform.ConnectionUpdate:
			s.Dispatch(ownerID, conn, e)
		case platform.CredentialsChanged:
			// the device store persists keys on its own
			s.log(ownerID).Info("credentials updated")
		}
	})
	s.setLink(ownerID, l)
	s.log(ownerID).Info("connection handle created", zap.Bool("reconnect", isReconnect))
	return conn, nil
}

// Dispatch applies one connection event. Events of a handle that is no
// longer the owner's current one are dropped.
func (s *Supervisor) Dispatch(ownerID int64, conn platform.Connection, update platform.ConnectionUpdate) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Errorf("supervisor: dispatch panic for owner %d: %v", ownerID, err)
		}
	}()

	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	l := s.current(ownerID)
	if l == nil || l.conn != conn {
		s.log(ownerID).Debug("dropping event from stale handle", zap.String("state", string(update.State)))
		return
	}

	switch update.State {
	case platform.StateQR:
		s.onChallenge(ownerID, update.QR)
	case platform.StateOpen:
		s.onOpen(ownerID, l)
	case platform.StateClosed:
		s.onClosed(ownerID, l, update)
	case platform.StateLoginExpired:
		s.onLoginExpired(ownerID, l, update)
	}
}

func (s *Supervisor) onChallenge(ownerID int64, code string) {
	log := s.log(ownerID)
	now := s.now()
	send := false
	s.store.Update(ownerID, func(sess *domain.OwnerSession) {
		if !sess.PendingQR {
			return
		}
		if !sess.LastQRAt.IsZero() && now.Sub(sess.LastQRAt) < s.opts.QRCooldown {
			return
		}
		sess.LastQRAt = now
		sess.State = domain.StateAwaitingChallenge
		send = true
	})
	if !send {
		log.Debug("skipping login challenge")
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		log.Error("render login challenge failed", zap.Error(err))
		notify.Send(context.Background(), s.notifier, ownerID, notify.Text(qrFailedText))
		return
	}
	notify.Send(context.Background(), s.notifier, ownerID, notify.Message{
		Text:     qrCaption,
		Markdown: true,
		Photo:    png,
	})
	log.Info("login challenge sent")
}

func (s *Supervisor) onOpen(ownerID int64, l *link) {
	if l.detach == nil && s.engine != nil {
		l.detach = s.engine.Attach(ownerID, l.conn)
	}
	s.store.Upsert(ownerID, func(sess *domain.OwnerSession) {
		sess.MarkOpen(s.now())
		sess.HandlerAttached = l.detach != nil
	})
	s.log(ownerID).Info("connection open", zap.Bool("reconnect", l.reconnect))

	text := connectedText
	if l.reconnect {
		text = reconnectedText
	}
	notify.Send(context.Background(), s.notifier, ownerID, notify.Text(text))
}

func (s *Supervisor) onClosed(ownerID int64, l *link, update platform.ConnectionUpdate) {
	log := s.log(ownerID)
	if l.detach != nil {
		l.detach()
		l.detach = nil
	}

	attempts := 0
	retry := false
	s.store.Upsert(ownerID, func(sess *domain.OwnerSession) {
		sess.MarkClosed()
		if update.Retryable() && sess.ReconnectAttempts < s.opts.MaxReconnectAttempts {
			sess.ReconnectAttempts++
			retry = true
		}
		attempts = sess.ReconnectAttempts
	})
	log.Info("connection closed",
		zap.Int("code", update.CloseCode), zap.String("reason", update.Reason),
		zap.Bool("retry", retry), zap.Int("attempt", attempts))

	if !retry {
		s.teardown(ownerID, l)
		return
	}

	if attempts == 1 {
		notify.Send(context.Background(), s.notifier, ownerID,
			notify.Text(disconnectedText(update.Reason, attempts, s.opts.MaxReconnectAttempts)))
	}
	closed := l.conn
	s.timers.Schedule(ownerID, "reconnect", s.opts.ReconnectDelay, func() {
		if cur := s.current(ownerID); cur == nil || cur.conn != closed {
			return
		}
		log.Info("reconnecting", zap.Int("attempt", attempts))
		_ = s.Connect(context.Background(), ownerID, true)
	})
}

// onLoginExpired ends a login that never completed. The handle never
// opened, so this does not use the reconnect budget.
func (s *Supervisor) onLoginExpired(ownerID int64, l *link, update platform.ConnectionUpdate) {
	s.discard(ownerID, l)
	s.log(ownerID).Info("login expired", zap.String("reason", update.Reason))
	notify.Send(context.Background(), s.notifier, ownerID, notify.Message{
		Text:     loginExpiredText(update.Reason),
		Markdown: true,
		Buttons:  [][]notify.Button{{{Label: "🔙 Main Menu", Data: notify.CallbackMainMenu}}},
	})
}

// teardown ends the owner's session for good; the caller holds the owner lock.
func (s *Supervisor) teardown(ownerID int64, l *link) {
	s.discard(ownerID, l)
	s.log(ownerID).Warn("session torn down, fresh login required")
	notify.Send(context.Background(), s.notifier, ownerID, notify.Text(permanentDisconnectText))
}

// discard drops the handle, its credential storage and the session; the
// caller holds the owner lock.
func (s *Supervisor) discard(ownerID int64, l *link) {
	s.timers.Cancel(ownerID)
	l.release()
	l.conn.Disconnect()
	if l.creds != nil {
		_ = l.creds.Close()
	}
	s.setLink(ownerID, nil)
	if err := s.creds.Delete(ownerID); err != nil {
		s.log(ownerID).Error("delete credential storage failed", zap.Error(err))
	}
	s.store.Reset(ownerID)
}

// RequestPairingCode asks the platform for a pairing code for phone and
// delivers it to the owner.
func (s *Supervisor) RequestPairingCode(ctx context.Context, ownerID int64, phone string) (string, error) {
	log := s.log(ownerID)
	lock := s.ownerLock(ownerID)
	lock.Lock()
	l := s.current(ownerID)
	if l == nil {
		lock.Unlock()
		return "", errors.WithStack(apperr.ErrNoActiveConnection)
	}
	conn := l.conn
	s.store.Upsert(ownerID, func(sess *domain.OwnerSession) {
		sess.PendingPairing = true
		sess.State = domain.StateAwaitingPairingCode
		sess.PhoneNumber = phone
	})
	lock.Unlock()

	// The platform call runs outside the owner lock so that connection
	// events of this handle keep flowing while it waits.
	code, err := s.pairingCode(ctx, conn, phone)
	if err != nil {
		err = apperr.Wrap(apperr.ErrPairingRequestFailed, err)
		log.Error("pairing code request failed", zap.Error(err))
		s.store.Update(ownerID, func(sess *domain.OwnerSession) {
			sess.PendingPairing = false
		})
		notify.Send(ctx, s.notifier, ownerID, notify.Message{
			Text:    pairingFailedText(err),
			Buttons: [][]notify.Button{{{Label: "🔙 Back", Data: notify.CallbackMainMenu}}},
		})
		return "", err
	}

	log.Info("pairing code issued")
	notify.Send(ctx, s.notifier, ownerID, notify.Message{
		Text:     pairingCodeText(code),
		Markdown: true,
		Buttons:  [][]notify.Button{{{Label: "❌ Cancel Login", Data: notify.CallbackMainMenu}}},
	})
	return code, nil
}

func (s *Supervisor) pairingCode(ctx context.Context, conn platform.Connection, phone string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.PairingRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.PairingTimeout)
		code, err := conn.RequestPairingCode(callCtx, phone)
		cancel()
		if err == nil {
			return code, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		zap.L().Debug("pairing code attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return "", lastErr
}

// RequestQR switches the owner to challenge login. The next challenge the
// handle reports is delivered without waiting for the cooldown.
func (s *Supervisor) RequestQR(ownerID int64) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()
	if s.current(ownerID) == nil {
		return errors.WithStack(apperr.ErrNoActiveConnection)
	}
	s.store.Upsert(ownerID, func(sess *domain.OwnerSession) {
		sess.PendingQR = true
		sess.LastQRAt = time.Time{}
		sess.State = domain.StateAwaitingChallenge
	})
	return nil
}

// Logout ends the owner's session and deletes its credentials. Calling it
// on an owner without a session is a no-op.
func (s *Supervisor) Logout(ctx context.Context, ownerID int64) error {
	log := s.log(ownerID)
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	if l := s.current(ownerID); l != nil {
		l.release()
		logoutCtx, cancel := context.WithTimeout(ctx, DefaultLogoutTimeout)
		if err := l.conn.Logout(logoutCtx); err != nil {
			log.Warn("platform logout failed", zap.Error(err))
		}
		cancel()
		l.conn.Disconnect()
		if l.creds != nil {
			_ = l.creds.Close()
		}
		s.setLink(ownerID, nil)
	}
	if s.creds.Exists(ownerID) {
		if err := s.creds.Delete(ownerID); err != nil {
			log.Error("delete credential storage failed", zap.Error(err))
		}
	}
	s.timers.Cancel(ownerID)
	s.store.Reset(ownerID)
	log.Info("logged out")
	return nil
}

// Restore reconnects every owner that still has credential storage.
func (s *Supervisor) Restore(ctx context.Context, owners []int64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ownerID := range owners {
		if !s.creds.Exists(ownerID) {
			continue
		}
		g.Go(func() error {
			s.store.GetOrCreate(ownerID)
			if err := s.Connect(ctx, ownerID, true); err != nil {
				s.log(ownerID).Warn("restore failed", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Status returns a copy of the owner's session.
func (s *Supervisor) Status(ownerID int64) (domain.OwnerSession, bool) {
	return s.store.Get(ownerID)
}

// HasCredentials reports whether the owner has credential storage on disk.
func (s *Supervisor) HasCredentials(ownerID int64) bool {
	return s.creds.Exists(ownerID)
}

// Sessions returns copies of all sessions.
func (s *Supervisor) Sessions() []domain.OwnerSession {
	return s.store.Snapshot()
}

// Shutdown disconnects every handle without touching credentials.
func (s *Supervisor) Shutdown() {
	s.timers.Stop()
	s.mu.Lock()
	links := make(map[int64]*link, len(s.links))
	for id, l := range s.links {
		links[id] = l
	}
	s.mu.Unlock()
	for id, l := range links {
		lock := s.ownerLock(id)
		lock.Lock()
		l.release()
		l.conn.Disconnect()
		if l.creds != nil {
			_ = l.creds.Close()
		}
		s.setLink(id, nil)
		lock.Unlock()
	}
}
