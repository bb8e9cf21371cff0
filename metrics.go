package marketauth

import (
	"time"

	internalmetrics "github.com/Agossa1/marketauth/internal/metrics"
)

// MetricID names one in-process counter.
type MetricID = internalmetrics.MetricID

// MetricsSnapshot is a point-in-time copy of every counter and the login
// latency histogram.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricLoginSuccess               = internalmetrics.MetricLoginSuccess
	MetricLoginInvalidCredentials    = internalmetrics.MetricLoginInvalidCredentials
	MetricLoginLocked                = internalmetrics.MetricLoginLocked
	MetricLoginVerificationRequired  = internalmetrics.MetricLoginVerificationRequired
	MetricAccountLockTriggered       = internalmetrics.MetricAccountLockTriggered
	MetricSessionIssued              = internalmetrics.MetricSessionIssued
	MetricRefreshSuccess             = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure             = internalmetrics.MetricRefreshFailure
	MetricTokenRejected              = internalmetrics.MetricTokenRejected
	MetricPasswordResetRequest       = internalmetrics.MetricPasswordResetRequest
	MetricPasswordResetCodeAccepted  = internalmetrics.MetricPasswordResetCodeAccepted
	MetricPasswordResetCodeRejected  = internalmetrics.MetricPasswordResetCodeRejected
	MetricPasswordResetCompleted     = internalmetrics.MetricPasswordResetCompleted
	MetricPasswordResetGrantRejected = internalmetrics.MetricPasswordResetGrantRejected
	MetricEmailVerificationRequest   = internalmetrics.MetricEmailVerificationRequest
	MetricEmailVerificationSuccess   = internalmetrics.MetricEmailVerificationSuccess
	MetricEmailVerificationFailure   = internalmetrics.MetricEmailVerificationFailure
	MetricPhoneVerificationRequest   = internalmetrics.MetricPhoneVerificationRequest
	MetricPhoneVerificationSuccess   = internalmetrics.MetricPhoneVerificationSuccess
	MetricPhoneVerificationFailure   = internalmetrics.MetricPhoneVerificationFailure
	MetricOTPIssued                  = internalmetrics.MetricOTPIssued
	MetricNotificationFailed         = internalmetrics.MetricNotificationFailed
	MetricRateLimitHit               = internalmetrics.MetricRateLimitHit
	MetricPasswordUpgraded           = internalmetrics.MetricPasswordUpgraded
	MetricAccountCreated             = internalmetrics.MetricAccountCreated
	MetricAccountDuplicate           = internalmetrics.MetricAccountDuplicate
	MetricLoginLatency               = internalmetrics.MetricLoginLatency

	// MetricIDCount is the number of defined metrics.
	MetricIDCount = internalmetrics.MetricIDCount
)

// HistogramBuckets is the number of latency buckets in a snapshot.
const HistogramBuckets = internalmetrics.HistBucketCount

// MetricsSnapshot returns current counter values. It is empty when metrics
// are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, elapsed time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, elapsed)
}
