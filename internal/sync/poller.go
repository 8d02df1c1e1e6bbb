package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/classroom/internal/api"
	"github.com/nhle/classroom/internal/metrics"
	"github.com/nhle/classroom/internal/model"
	"github.com/nhle/classroom/internal/notification"
)

// PollInterval is the time between two due-reminder polls.
const PollInterval = 60 * time.Second

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// ReminderFetcher returns the reminders that are currently due.
type ReminderFetcher interface {
	DueReminders(ctx context.Context) ([]model.Reminder, error)
}

// Alerter shows ephemeral alerts. Alert must not block; it is called from
// the poll loop once per delivered reminder.
type Alerter interface {
	Alert(a model.Alert)
}

// Result describes the outcome of one poll tick.
type Result struct {
	// Delivered holds the notifications added to the store, in the order
	// the service returned them.
	Delivered []model.Notification

	// Skipped is set when no credential was present and no request was made.
	Skipped bool

	// Err is the transport or server error that abandoned the tick.
	Err error

	// AuthError is set when the server rejected the credential. The store
	// has been cleared; the session layer is expected to log out.
	AuthError bool
}

// Poller periodically fetches due reminders and turns them into
// notifications plus alerts.
type Poller struct {
	fetcher       ReminderFetcher
	store         *notification.Store
	alerts        Alerter
	ledger        Ledger
	authenticated func() bool
	logger        *zap.Logger
	interval      time.Duration
	now           func() time.Time

	resultCh  chan Result
	triggerCh chan struct{}

	mu      gosync.Mutex
	running bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithLedger filters out reminders the ledger has already seen.
func WithLedger(l Ledger) Option {
	return func(p *Poller) { p.ledger = l }
}

// WithLogger sets the poller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates a Poller. authenticated reports whether a credential is
// present; ticks are skipped without a request while it returns false.
func New(
	fetcher ReminderFetcher,
	store *notification.Store,
	alerts Alerter,
	authenticated func() bool,
	opts ...Option,
) *Poller {
	p := &Poller{
		fetcher:       fetcher,
		store:         store,
		alerts:        alerts,
		authenticated: authenticated,
		logger:        zap.NewNop(),
		interval:      PollInterval,
		now:           time.Now,
		resultCh:      make(chan Result, 16),
		triggerCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling loop. It polls immediately and then every
// PollInterval until Stop is called or ctx is cancelled. Calling Start on
// a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	// Drop a refresh requested while stopped; the first tick is immediate.
	select {
	case <-p.triggerCh:
	default:
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.gen++
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(loopCtx, p.gen, p.done)
}

// Stop halts the polling loop. When Stop returns the loop has exited and no
// further store mutation or alert can happen. It is safe to call Stop on a
// stopped poller. Stop must not be called from an Alerter.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.gen++
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Refresh asks the loop for an immediate poll. The request is folded into
// a pending one and ignored while the poller is stopped.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Forget resets the ledger so reminders removed from the feed by a sign-out
// are announced again once they are due. It does nothing without a ledger.
func (p *Poller) Forget(ctx context.Context) error {
	if p.ledger == nil {
		return nil
	}
	return p.ledger.Reset(ctx)
}

// Results returns the channel on which tick outcomes are published. Results
// are dropped when nobody keeps up with the channel.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// run is the single loop goroutine, so ticks never overlap. A tick that
// overruns the interval makes the ticker drop the missed ticks.
func (p *Poller) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer func() {
		// The parent context ended the loop rather than Stop.
		p.mu.Lock()
		if p.gen == gen {
			p.running = false
		}
		p.mu.Unlock()
		close(done)
	}()

	p.tick(ctx, gen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen)
		case <-p.triggerCh:
			p.tick(ctx, gen)
		}
	}
}

// live reports whether the loop started with gen is still the current one.
func (p *Poller) live(ctx context.Context, gen uint64) bool {
	if ctx.Err() != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && p.gen == gen
}

// tick performs one poll: fetch, filter, insert, alert.
func (p *Poller) tick(ctx context.Context, gen uint64) {
	if !p.live(ctx, gen) {
		return
	}

	if !p.authenticated() {
		p.logger.Debug("no credential, skipping reminder check")
		metrics.RecordPollTick("skipped", 0)
		p.sendResult(Result{Skipped: true})
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	started := time.Now()
	reminders, err := p.fetcher.DueReminders(fetchCtx)
	elapsed := time.Since(started)

	if !p.live(ctx, gen) {
		return
	}

	if err != nil {
		p.handleError(ctx, err, elapsed)
		return
	}

	delivered := p.deliver(ctx, reminders)
	metrics.RecordPollTick("ok", elapsed)
	p.sendResult(Result{Delivered: delivered})
}

func (p *Poller) handleError(ctx context.Context, err error, elapsed time.Duration) {
	switch {
	case api.IsAuthError(err):
		p.logger.Warn("reminder check unauthorized, clearing notifications", zap.Error(err))
		p.store.Clear()
		if ferr := p.Forget(ctx); ferr != nil {
			p.logger.Warn("resetting delivery ledger", zap.Error(ferr))
		}
		metrics.RecordPollTick("unauthorized", elapsed)
		p.sendResult(Result{Err: err, AuthError: true})

	case errors.Is(err, api.ErrNoCredential):
		// Credential vanished between the presence check and the request.
		metrics.RecordPollTick("skipped", 0)
		p.sendResult(Result{Skipped: true})

	default:
		p.logger.Warn("reminder check failed", zap.Error(err))
		metrics.RecordPollTick("error", elapsed)
		p.sendResult(Result{Err: err})
	}
}

// deliver inserts each not-yet-delivered reminder in service order and
// raises one alert per reminder.
func (p *Poller) deliver(ctx context.Context, reminders []model.Reminder) []model.Notification {
	if len(reminders) == 0 {
		return nil
	}

	now := p.now()
	delivered := make([]model.Notification, 0, len(reminders))

	for _, r := range reminders {
		if !p.claim(ctx, r.ID) {
			metrics.RemindersDuplicate.Inc()
			continue
		}

		n := r.Notification(now)
		p.store.Add(n)
		p.alerts.Alert(r.Alert())
		delivered = append(delivered, n)
	}

	metrics.RemindersDelivered.Add(float64(len(delivered)))
	if len(delivered) > 0 {
		p.logger.Info("delivered due reminders", zap.Int("count", len(delivered)))
	}
	return delivered
}

// claim reports whether the reminder should be delivered. Without a ledger
// every reminder is delivered; a failing ledger lets the reminder through.
func (p *Poller) claim(ctx context.Context, id string) bool {
	if p.ledger == nil {
		return true
	}

	first, err := p.ledger.Claim(ctx, id)
	if err != nil {
		p.logger.Warn("ledger claim failed, delivering anyway",
			zap.String("reminder_id", id),
			zap.Error(err),
		)
		return true
	}
	if !first {
		p.logger.Debug("skipped already delivered reminder", zap.String("reminder_id", id))
	}
	return first
}

// sendResult sends a Result on the result channel without blocking.
func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
