package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 上游（邮箱库存商、激活接口）调用延迟（毫秒）
	UpstreamCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_call_latency_ms",
			Help:    "Upstream provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"endpoint", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 邮箱提取结果计数
	ExtractionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_extraction_count",
			Help: "Total number of extraction requests by outcome",
		},
		[]string{"outcome"}, // outcome: success, retry, error
	)

	// 提取到的邮箱数量
	ExtractedEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extracted_emails_total",
			Help: "Total number of email addresses handed out",
		},
		[]string{"type"},
	)

	// 账号操作计数
	AccountOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_operation_count",
			Help: "Total number of account history operations",
		},
		[]string{"operation", "status"},
	)
)

// RecordUpstreamCallLatency 记录上游调用延迟
func RecordUpstreamCallLatency(endpoint, status string, duration time.Duration) {
	UpstreamCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementExtraction 增加提取结果计数
func IncrementExtraction(outcome string) {
	ExtractionCount.WithLabelValues(outcome).Inc()
}

// AddExtractedEmails 累加提取到的邮箱数
func AddExtractedEmails(emailType string, n int) {
	ExtractedEmails.WithLabelValues(emailType).Add(float64(n))
}

// IncrementAccountOperation 增加账号操作计数
func IncrementAccountOperation(operation, status string) {
	AccountOperationCount.WithLabelValues(operation, status).Inc()
}
