package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/astroline/astroline-bot/internal/scheduler"
	"github.com/astroline/astroline-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of registration state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	registrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total number of completed registrations",
		},
	)
	referralCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_credits_total",
			Help: "Total number of referral bonuses credited",
		},
	)
	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payment events labeled by outcome",
		},
		[]string{"status"},
	)
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_deliveries_total",
			Help: "Total number of scheduled forecast deliveries labeled by outcome",
		},
		[]string{"status"},
	)
	scheduledJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduled_jobs",
			Help: "Current number of armed per-user delivery timers",
		},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
	scheduler.RegisterJobGauge(SetScheduledJobs)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks registration FSM transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	if to == "" {
		to = "none"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordRegistration counts a completed registration.
func RecordRegistration() {
	registrationsTotal.Inc()
}

// RecordReferralCredit counts a credited referral bonus.
func RecordReferralCredit() {
	referralCreditsTotal.Inc()
}

// RecordPayment counts a payment event by outcome.
func RecordPayment(status string) {
	if status == "" {
		status = "unknown"
	}

	paymentsTotal.WithLabelValues(status).Inc()
}

// RecordDelivery counts a scheduled delivery attempt by outcome.
func RecordDelivery(status string) {
	if status == "" {
		status = "unknown"
	}

	deliveriesTotal.WithLabelValues(status).Inc()
}

// SetScheduledJobs updates the armed-timer gauge.
func SetScheduledJobs(count int) {
	scheduledJobs.Set(float64(count))
}
