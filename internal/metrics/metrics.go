package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginInvalidCredentials
	MetricLoginLocked
	MetricLoginVerificationRequired
	MetricAccountLockTriggered
	MetricSessionIssued
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricTokenRejected
	MetricPasswordResetRequest
	MetricPasswordResetCodeAccepted
	MetricPasswordResetCodeRejected
	MetricPasswordResetCompleted
	MetricPasswordResetGrantRejected
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPhoneVerificationRequest
	MetricPhoneVerificationSuccess
	MetricPhoneVerificationFailure
	MetricOTPIssued
	MetricNotificationFailed
	MetricRateLimitHit
	MetricPasswordUpgraded
	MetricAccountCreated
	MetricAccountDuplicate
	MetricLoginLatency
	MetricIDCount
)

var names = [MetricIDCount]string{
	MetricLoginSuccess:               "login_success",
	MetricLoginInvalidCredentials:    "login_invalid_credentials",
	MetricLoginLocked:                "login_locked",
	MetricLoginVerificationRequired:  "login_verification_required",
	MetricAccountLockTriggered:       "account_lock_triggered",
	MetricSessionIssued:              "session_issued",
	MetricRefreshSuccess:             "refresh_success",
	MetricRefreshFailure:             "refresh_failure",
	MetricTokenRejected:              "token_rejected",
	MetricPasswordResetRequest:       "password_reset_request",
	MetricPasswordResetCodeAccepted:  "password_reset_code_accepted",
	MetricPasswordResetCodeRejected:  "password_reset_code_rejected",
	MetricPasswordResetCompleted:     "password_reset_completed",
	MetricPasswordResetGrantRejected: "password_reset_grant_rejected",
	MetricEmailVerificationRequest:   "email_verification_request",
	MetricEmailVerificationSuccess:   "email_verification_success",
	MetricEmailVerificationFailure:   "email_verification_failure",
	MetricPhoneVerificationRequest:   "phone_verification_request",
	MetricPhoneVerificationSuccess:   "phone_verification_success",
	MetricPhoneVerificationFailure:   "phone_verification_failure",
	MetricOTPIssued:                  "otp_issued",
	MetricNotificationFailed:         "notification_failed",
	MetricRateLimitHit:               "rate_limit_hit",
	MetricPasswordUpgraded:           "password_upgraded",
	MetricAccountCreated:             "account_created",
	MetricAccountDuplicate:           "account_duplicate",
	MetricLoginLatency:               "login_latency",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= MetricIDCount {
		return "unknown"
	}
	return names[id]
}

const (
	HistBucketCount = 8
	cacheLineSize   = 64
)

// BucketBounds are the inclusive upper bounds of the latency buckets; the
// last bucket is unbounded.
var BucketBounds = [HistBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type histogram struct {
	buckets [HistBucketCount]uint64
	sumNs   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config switches collection on.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds counters and the login latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	latency       histogram
}

// Snapshot is a point-in-time copy of every counter and histogram.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// LatencySum is the total observed duration per histogram.
	LatencySum map[MetricID]time.Duration
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d; only MetricLoginLatency has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricLoginLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[bucketIndex(d)], 1)
	if d > 0 {
		atomic.AddUint64(&m.latency.sumNs, uint64(d))
	}
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		LatencySum: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if id == MetricLoginLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, HistBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
		s.LatencySum[MetricLoginLatency] = time.Duration(atomic.LoadUint64(&m.latency.sumNs))
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d <= bound {
			return i
		}
	}
	return HistBucketCount - 1
}
