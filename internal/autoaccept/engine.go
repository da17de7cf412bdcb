// Package autoaccept approves pending group-join requests on an open
// connection according to the owner's policy.
package autoaccept

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/apperr"
	"github.com/talkincode/autoaccept/internal/domain"
	"github.com/talkincode/autoaccept/internal/notify"
	"github.com/talkincode/autoaccept/internal/platform"
	"github.com/talkincode/autoaccept/internal/session"
	"github.com/talkincode/autoaccept/internal/timers"
	"go.uber.org/zap"
)

const (
	DefaultLeaveDelay  = 2 * time.Second
	DefaultCallTimeout = 30 * time.Second
	DefaultPoolSize    = 64
)

type Options struct {
	LeaveDelay  time.Duration
	CallTimeout time.Duration
	PoolSize    int
}

// Engine evaluates membership events. One Engine serves all owners; each
// connection gets its own subscription through Attach.
type Engine struct {
	store       *session.Store
	notifier    notify.Notifier
	timers      *timers.OwnerTimers
	pool        *ants.Pool
	leaveDelay  time.Duration
	callTimeout time.Duration
}

func NewEngine(store *session.Store, notifier notify.Notifier, tm *timers.OwnerTimers, opts Options) (*Engine, error) {
	if opts.LeaveDelay <= 0 {
		opts.LeaveDelay = DefaultLeaveDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	pool, err := ants.NewPool(opts.PoolSize, ants.WithPanicHandler(func(p interface{}) {
		zap.S().Errorf("autoaccept: event handler panic: %v", p)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "autoaccept: create worker pool")
	}
	return &Engine{
		store:       store,
		notifier:    notifier,
		timers:      tm,
		pool:        pool,
		leaveDelay:  opts.LeaveDelay,
		callTimeout: opts.CallTimeout,
	}, nil
}

// Attach subscribes the engine to membership events of conn. The returned
// function removes the subscription; it is tied to the lifetime of conn.
func (e *Engine) Attach(ownerID int64, conn platform.Connection) (detach func()) {
	unsubscribe := conn.Subscribe(func(evt platform.Event) {
		update, ok := evt.(platform.MembershipUpdate)
		if !ok {
			return
		}
		err := e.pool.Submit(func() {
			e.Handle(context.Background(), ownerID, conn, update)
		})
		if err != nil {
			zap.L().Warn("autoaccept: dropping membership event",
				zap.Int64("owner_id", ownerID), zap.String("group", update.GroupID), zap.Error(err))
		}
	})
	zap.L().Info("autoaccept: handler attached", zap.Int64("owner_id", ownerID))
	return unsubscribe
}

// Handle applies the owner's policy to one membership event and returns the
// number of approved candidates.
func (e *Engine) Handle(ctx context.Context, ownerID int64, conn platform.Connection, update platform.MembershipUpdate) (approved int) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Errorf("autoaccept: handler panic for owner %d: %v", ownerID, err)
		}
	}()

	sess, ok := e.store.Get(ownerID)
	if !ok || !sess.Policy.Enabled {
		return 0
	}
	policy := sess.Policy
	if !update.Action.IsJoinRequest() {
		return 0
	}

	log := zap.L().With(zap.Int64("owner_id", ownerID), zap.String("group", update.GroupID))

	meta, err := e.groupMetadata(ctx, conn, update.GroupID)
	if err != nil {
		log.Error("autoaccept: fetch group metadata failed", zap.Error(err))
		return 0
	}
	if !IsSelfAdmin(conn.SelfID(), meta) {
		log.Info("autoaccept: bot is not admin in group, skipping", zap.String("subject", meta.Subject))
		return 0
	}

	leaveScheduled := false
	for _, participant := range update.Participants {
		number := update.Number(participant)
		if !policy.Accepts(number) {
			log.Debug("autoaccept: candidate does not match policy", zap.String("number", number))
			continue
		}

		if err := e.approve(ctx, conn, update.GroupID, participant); err != nil {
			log.Error("autoaccept: approve failed", zap.String("number", number), zap.Error(err))
			notify.Send(ctx, e.notifier, ownerID, notify.Text(approvalFailedText(meta.Subject, number, err)))
			continue
		}
		approved++
		log.Info("autoaccept: participant approved", zap.String("number", number), zap.String("subject", meta.Subject))
		notify.Send(ctx, e.notifier, ownerID, notify.Text(approvedText(meta.Subject, number, policy)))

		if policy.PostAction == domain.PostExit && !leaveScheduled {
			leaveScheduled = true
			e.scheduleLeave(ownerID, conn, meta.Subject, update.GroupID, number)
		}
	}
	return approved
}

// IsSelfAdmin reports whether selfID holds admin or superadmin rank in meta.
// Identifiers are compared on their number component only.
func IsSelfAdmin(selfID string, meta *platform.GroupMetadata) bool {
	self := platform.NumberFromID(selfID)
	if self == "" || meta == nil {
		return false
	}
	for _, p := range meta.Participants {
		if platform.NumberFromID(p.ID) != self {
			continue
		}
		if p.Rank == platform.RankAdmin || p.Rank == platform.RankSuperAdmin {
			return true
		}
	}
	return false
}

// Release stops the worker pool.
func (e *Engine) Release() {
	e.pool.Release()
}

func (e *Engine) groupMetadata(ctx context.Context, conn platform.Connection, groupID string) (*platform.GroupMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	meta, err := conn.GroupMetadata(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errors.Errorf("empty metadata for group %s", groupID)
	}
	return meta, nil
}

func (e *Engine) approve(ctx context.Context, conn platform.Connection, groupID, participant string) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	if err := conn.ApproveParticipant(ctx, groupID, participant); err != nil {
		return apperr.Wrap(apperr.ErrApprovalFailed, err)
	}
	return nil
}

// scheduleLeave leaves the group after the leave delay so the approval has
// propagated first.
func (e *Engine) scheduleLeave(ownerID int64, conn platform.Connection, subject, groupID, number string) {
	e.timers.Schedule(ownerID, "leave-group", e.leaveDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.callTimeout)
		defer cancel()
		log := zap.L().With(zap.Int64("owner_id", ownerID), zap.String("group", groupID))
		if err := conn.LeaveGroup(ctx, groupID); err != nil {
			err = apperr.Wrap(apperr.ErrLeaveGroupFailed, err)
			log.Error("autoaccept: auto-exit failed", zap.Error(err))
			notify.Send(ctx, e.notifier, ownerID, notify.Text(leaveFailedText(subject, err)))
			return
		}
		log.Info("autoaccept: auto-exit done", zap.String("after", number))
		notify.Send(ctx, e.notifier, ownerID, notify.Text(leftText(subject, number)))
	})
}
