package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Reminder poll ticks by result: ok, skipped, error, unauthorized.
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_poll_ticks_total",
			Help: "Total number of reminder poll ticks by result",
		},
		[]string{"result"},
	)

	// Reminder poll latency (seconds).
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_poll_duration_seconds",
			Help:    "Duration of the due-reminder request in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	// Reminders delivered to the notification feed.
	RemindersDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_delivered_total",
			Help: "Total number of reminders delivered to the notification feed",
		},
	)

	// Reminders dropped because the ledger had already seen them.
	RemindersDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_duplicate_total",
			Help: "Total number of due reminders skipped as already delivered",
		},
	)

	// Attendance windows opened by this client.
	AttendanceStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_starts_total",
			Help: "Total number of start-attendance calls by status",
		},
		[]string{"status"}, // status: success, failed, rejected
	)

	// Mark attempts by classified outcome.
	MarkAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_mark_attempts_total",
			Help: "Total number of mark-attendance attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordPollTick records one poll tick and, when the request was sent,
// its duration.
func RecordPollTick(result string, duration time.Duration) {
	PollTicks.WithLabelValues(result).Inc()
	if duration > 0 {
		PollDuration.Observe(duration.Seconds())
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
