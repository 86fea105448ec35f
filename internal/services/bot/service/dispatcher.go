// Package service runs the bot: it turns chat updates into events, shards them
// per user onto workers, runs each event through the handler chain under the
// user's session lock, then sends replies and starts tasks outside the lock.
package service

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"vocabot/internal/core/ratelimit"
	"vocabot/internal/core/session"
	"vocabot/internal/platform/logger"
	"vocabot/internal/services/bot/chain"
	"vocabot/internal/services/bot/domain"
)

// ErrStopped is returned by Submit once the dispatcher has shut down
var ErrStopped = errors.New("dispatcher stopped")

// Options tunes the worker layout
type Options struct {
	Shards    int
	QueueSize int
	// TaskTimeout bounds tasks that do not set their own
	TaskTimeout time.Duration
}

func (o *Options) defaults() {
	if o.Shards <= 0 {
		o.Shards = 8
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 30 * time.Second
	}
}

type job struct {
	ctx context.Context
	ev  domain.Event
}

type ctxBox struct{ ctx context.Context }

// Dispatcher keeps each user's events in order with at most one in flight,
// while different users run in parallel
type Dispatcher struct {
	handle chain.Handler
	store  session.Store
	locks  *session.Locker
	tr     domain.Transport
	opts   Options
	log    *logger.Logger

	mu      sync.RWMutex
	shards  []chan job
	running atomic.Bool
	closed  bool
	done    chan struct{}
	// base parents tasks and follow-ups; read without mu so workers never
	// wait on a pending shutdown
	base atomic.Pointer[ctxBox]

	workers sync.WaitGroup
	tasks   sync.WaitGroup
}

// NewDispatcher wires the handler chain to storage and transport
func NewDispatcher(h chain.Handler, st session.Store, locks *session.Locker, tr domain.Transport, opts Options) *Dispatcher {
	if h == nil || st == nil || locks == nil || tr == nil {
		panic("dispatcher requires a handler, session store, locker and transport")
	}
	opts.defaults()
	d := &Dispatcher{
		handle: h,
		store:  st,
		locks:  locks,
		tr:     tr,
		opts:   opts,
		log:    logger.Named("dispatcher"),
		done:   make(chan struct{}),
	}
	d.base.Store(&ctxBox{ctx: context.Background()})
	return d
}

func (d *Dispatcher) baseCtx() context.Context { return d.base.Load().ctx }

// Run starts one worker per shard and blocks until ctx is done. Queued
// events are drained and running tasks awaited before it returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.closed || d.running.Load() {
		d.mu.Unlock()
		return errors.New("dispatcher already started")
	}
	d.base.Store(&ctxBox{ctx: ctx})
	d.shards = make([]chan job, d.opts.Shards)
	for i := range d.shards {
		ch := make(chan job, d.opts.QueueSize)
		d.shards[i] = ch
		d.workers.Add(1)
		go d.worker(ch)
	}
	d.running.Store(true)
	d.mu.Unlock()
	d.log.Info().Int("shards", d.opts.Shards).Msg("dispatcher started")

	<-ctx.Done()
	// release senders blocked on a full shard before taking the write lock
	close(d.done)

	d.mu.Lock()
	d.closed = true
	d.running.Store(false)
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	d.workers.Wait()
	d.tasks.Wait()
	d.log.Info().Msg("dispatcher drained")
	return nil
}

func (d *Dispatcher) worker(ch <-chan job) {
	defer d.workers.Done()
	for j := range ch {
		ctx := j.ctx
		if ctx.Err() != nil {
			// draining after shutdown still finishes accepted events
			ctx = context.WithoutCancel(ctx)
		}
		d.Process(ctx, j.ev)
	}
}

// Submit queues ev on its user's shard. Before Run it processes ev inline.
func (d *Dispatcher) Submit(ctx context.Context, ev domain.Event) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrStopped
	}
	if !d.running.Load() {
		d.mu.RUnlock()
		d.Process(ctx, ev)
		return nil
	}
	defer d.mu.RUnlock()
	ch := d.shards[shardOf(ev.UserID, len(d.shards))]
	select {
	case ch <- job{ctx: ctx, ev: ev}:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shardOf(userID int64, n int) int {
	return int(uint64(userID) % uint64(n))
}

// Process handles one event to completion on the calling goroutine
func (d *Dispatcher) Process(ctx context.Context, ev domain.Event) {
	unlock := d.locks.Lock(ev.UserID)
	s, err := d.store.Get(ctx, ev.UserID)
	if err != nil {
		unlock()
		logger.C(ctx).Error().Err(err).Int64("user_id", ev.UserID).Msg("session load failed")
		return
	}
	out, herr := d.handle(ctx, ev, s)
	if herr == nil {
		if err := d.store.Put(ctx, s); err != nil {
			logger.C(ctx).Error().Err(err).Int64("user_id", ev.UserID).Msg("session save failed")
		}
	}
	unlock()

	d.deliver(ctx, ev.UserID, out.Replies)
	for _, t := range out.Tasks {
		d.spawn(ev.UserID, t)
	}
}

// deliver sends replies in order; one failed reply does not stop the rest
func (d *Dispatcher) deliver(ctx context.Context, userID int64, replies []domain.Reply) {
	for _, r := range replies {
		var err error
		switch r.Kind {
		case domain.ReplySend:
			var id int
			id, err = d.tr.Send(ctx, r.ChatID, r)
			if err == nil && r.Bind != nil {
				d.bind(ctx, userID, r.Bind, id)
			}
		case domain.ReplyEdit:
			err = d.tr.Edit(ctx, r.ChatID, r.MessageID, r)
		case domain.ReplyEditKeyboard:
			err = d.tr.EditKeyboard(ctx, r.ChatID, r.MessageID, r.Keyboard)
		case domain.ReplyAnswer:
			err = d.tr.Answer(ctx, r.CallbackID, r.Text, r.Alert)
		case domain.ReplyDelete:
			err = d.tr.Delete(ctx, r.ChatID, r.MessageID)
		case domain.ReplyPoll:
			if r.Poll == nil {
				continue
			}
			var pollID string
			_, pollID, err = d.tr.SendPoll(ctx, r.ChatID, *r.Poll, r.Keyboard)
			if err == nil && r.Bind != nil {
				d.bind(ctx, userID, r.Bind, pollID)
			}
		}
		if err != nil {
			logger.C(ctx).Warn().Err(err).Int("kind", int(r.Kind)).Int64("chat_id", r.ChatID).Msg("reply failed")
		}
	}
}

// bind stores a sent message or poll id in the session, provided the session
// still expects it
func (d *Dispatcher) bind(ctx context.Context, userID int64, b *domain.Binding, value any) {
	unlock := d.locks.Lock(userID)
	defer unlock()
	s, err := d.store.Get(ctx, userID)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("bind: session load failed")
		return
	}
	tokenKey := b.Key + "_token"
	if s.String(tokenKey) != b.Token {
		return
	}
	if err := s.Set(b.Key, value); err != nil {
		logger.C(ctx).Warn().Err(err).Str("key", b.Key).Msg("bind: set failed")
		return
	}
	s.Del(tokenKey)
	if err := d.store.Put(ctx, s); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("bind: session save failed")
	}
}

// spawn runs t outside any lock and feeds its follow-up back in
func (d *Dispatcher) spawn(userID int64, t domain.Task) {
	base := d.baseCtx()
	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		timeout := t.Timeout
		if timeout <= 0 {
			timeout = d.opts.TaskTimeout
		}
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		ctx = logger.WithUpdate(ctx, "", userID)

		var (
			ev  *domain.Event
			err error
		)
		func() {
			defer func() {
				if v := recover(); v != nil {
					logger.C(ctx).Error().Interface("panic", v).Bytes("stack", debug.Stack()).Str("task", t.Name).Msg("task panicked")
				}
			}()
			ev, err = t.Run(ctx)
		}()
		if err != nil {
			logger.C(ctx).Warn().Err(err).Str("task", t.Name).Msg("task failed")
		}
		if ev == nil {
			return
		}
		if ev.UserID == 0 {
			ev.UserID = userID
		}
		if ev.ChatID == 0 {
			ev.ChatID = ev.UserID
		}
		if err := d.Submit(base, *ev); err != nil {
			logger.C(ctx).Warn().Err(err).Str("task", t.Name).Msg("follow-up dropped")
		}
	}()
}

// Wait blocks until every task started so far has finished
func (d *Dispatcher) Wait() { d.tasks.Wait() }

// OnUnlock is the rate limiter callback: it tells the user they may go on
func (d *Dispatcher) OnUnlock(k ratelimit.Key) {
	ev := domain.NewInternal(k.UserID, domain.InternalUnlocked, nil)
	if err := d.Submit(d.baseCtx(), ev); err != nil {
		d.log.Debug().Err(err).Int64("user_id", k.UserID).Msg("unlock notice dropped")
	}
}
