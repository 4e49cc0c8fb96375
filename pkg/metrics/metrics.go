package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	metricPrefix = "controlid_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	sessionLogins *prometheus.CounterVec

	commandsEnqueued  prometheus.Counter
	commandsDelivered prometheus.Counter
	commandResults    *prometheus.CounterVec

	notificationsReceived *prometheus.CounterVec

	syncCycles       *prometheus.CounterVec
	syncCycleLatency *prometheus.HistogramVec
	logsForwarded    *prometheus.CounterVec
)

// Init registers relay metrics. When db is not nil gauges backed by the
// archive tables are registered as well.
func Init(db *sql.DB) {
	registerOnce.Do(func() {
		sessionLogins = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "session_logins_total",
				Help: "Total device logins by result",
			},
			[]string{"result"},
		)

		commandsEnqueued = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_commands_enqueued_total",
				Help: "Total commands enqueued for polling devices",
			},
		)
		commandsDelivered = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_commands_delivered_total",
				Help: "Total commands handed out to polling devices",
			},
		)
		commandResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_command_results_total",
				Help: "Total finished commands by state",
			},
			[]string{"state"},
		)

		notificationsReceived = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_received_total",
				Help: "Total notifications received by category",
			},
			[]string{"category"},
		)

		syncCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_cycles_total",
				Help: "Total log sync cycles by result",
			},
			[]string{"result"},
		)
		syncCycleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sync_cycle_latency_seconds",
				Help:    "Log sync cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		logsForwarded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "access_logs_forwarded_total",
				Help: "Total access logs forwarded by device",
			},
			[]string{"device_id"},
		)

		prometheus.MustRegister(
			sessionLogins,
			commandsEnqueued,
			commandsDelivered,
			commandResults,
			notificationsReceived,
			syncCycles,
			syncCycleLatency,
			logsForwarded,
		)

		if db != nil {
			registerDBMetrics(db)
		}
	})
}

func registerDBMetrics(db *sql.DB) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "notifications_stored",
			Help: "Notifications kept in the store",
		},
		func() float64 {
			return queryCount(db, "SELECT COUNT(*) FROM notifications")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "access_logs_archived",
			Help: "Access logs kept in the local archive",
		},
		func() float64 {
			return queryCount(db, "SELECT COUNT(*) FROM access_logs")
		},
	))
}

func queryCount(db *sql.DB, query string) float64 {
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		log.Warnf("metrics query failed: %v", err)
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

// IncSessionLogin increments the device login counter.
func IncSessionLogin(result string) {
	if result == "" {
		result = resultSuccess
	}
	if sessionLogins != nil {
		sessionLogins.WithLabelValues(result).Inc()
	}
}

// AddCommandsEnqueued increments the enqueued command counter by count.
func AddCommandsEnqueued(count int) {
	if count <= 0 {
		return
	}
	if commandsEnqueued != nil {
		commandsEnqueued.Add(float64(count))
	}
}

// AddCommandsDelivered increments the delivered command counter by count.
func AddCommandsDelivered(count int) {
	if count <= 0 {
		return
	}
	if commandsDelivered != nil {
		commandsDelivered.Add(float64(count))
	}
}

// IncCommandResult increments the finished command counter.
func IncCommandResult(state string) {
	if state == "" {
		state = "unknown"
	}
	if commandResults != nil {
		commandResults.WithLabelValues(state).Inc()
	}
}

// IncNotification increments the received notification counter.
func IncNotification(category string) {
	if category == "" {
		category = "unknown"
	}
	if notificationsReceived != nil {
		notificationsReceived.WithLabelValues(category).Inc()
	}
}

// ObserveSyncCycle records sync cycle duration and result.
func ObserveSyncCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if syncCycles != nil {
		syncCycles.WithLabelValues(result).Inc()
	}
	if syncCycleLatency != nil {
		syncCycleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddLogsForwarded increments the forwarded log counter of a device.
func AddLogsForwarded(deviceID string, count int) {
	if count <= 0 {
		return
	}
	if logsForwarded != nil {
		logsForwarded.WithLabelValues(deviceID).Add(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = "skipped"
)
