package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Server Metrics

	// APIRequestsTotal API请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration API请求处理时长
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Workflow Metrics

	// RequestsSubmittedTotal 已提交的授权申请总数
	RequestsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "privilege_requests_submitted_total",
			Help: "Total number of privilege requests submitted",
		},
	)

	// ApprovalsProcessedTotal 审批处理总数（按动作和级别）
	ApprovalsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_processed_total",
			Help: "Total number of approval step decisions processed",
		},
		[]string{"action", "level"},
	)

	// RequestsCompletedTotal 结束的申请总数（按最终状态）
	RequestsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privilege_requests_completed_total",
			Help: "Total number of privilege requests reaching a terminal status",
		},
		[]string{"status"},
	)

	// Escalation Sweep Metrics

	// EscalationTiersSentTotal 已发送的升级通知总数（按级别）
	EscalationTiersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalation_tiers_sent_total",
			Help: "Total number of escalation tier notifications sent",
		},
		[]string{"tier"},
	)

	// EscalationSweepRunsTotal 巡检运行总数（按结果）
	EscalationSweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalation_sweep_runs_total",
			Help: "Total number of escalation sweep runs",
		},
		[]string{"result"}, // completed, disabled, locked
	)

	// EscalationSweepErrorsTotal 巡检中单条升级记录处理失败总数
	EscalationSweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escalation_sweep_errors_total",
			Help: "Total number of per-escalation errors during sweeps",
		},
	)

	// EscalationSweepDuration 巡检耗时
	EscalationSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "escalation_sweep_duration_seconds",
			Help:    "Escalation sweep duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	// ActiveEscalations 当前活跃的升级记录数
	ActiveEscalations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_escalations_total",
			Help: "Number of escalations currently in active status",
		},
	)

	// NotificationsEnqueuedTotal 入队的通知总数（按类型）
	NotificationsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Total number of notifications enqueued",
		},
		[]string{"type"},
	)
)
