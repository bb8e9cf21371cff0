package internaldefs

import (
	"github.com/Agossa1/marketauth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   marketauth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   marketauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: marketauth.MetricLoginSuccess, Name: "marketauth_login_success_total", Help: "Successful login attempts."},
	{ID: marketauth.MetricLoginInvalidCredentials, Name: "marketauth_login_invalid_credentials_total", Help: "Logins rejected for an unknown email or wrong password."},
	{ID: marketauth.MetricLoginLocked, Name: "marketauth_login_locked_total", Help: "Logins rejected because the account is locked."},
	{ID: marketauth.MetricLoginVerificationRequired, Name: "marketauth_login_verification_required_total", Help: "Logins rejected because the email is not verified."},
	{ID: marketauth.MetricAccountLockTriggered, Name: "marketauth_account_lock_triggered_total", Help: "Accounts locked after reaching the failure threshold."},
	{ID: marketauth.MetricSessionIssued, Name: "marketauth_session_issued_total", Help: "Access and refresh token pairs issued."},
	{ID: marketauth.MetricRefreshSuccess, Name: "marketauth_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: marketauth.MetricRefreshFailure, Name: "marketauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: marketauth.MetricTokenRejected, Name: "marketauth_token_rejected_total", Help: "Access tokens that failed verification."},
	{ID: marketauth.MetricPasswordResetRequest, Name: "marketauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: marketauth.MetricPasswordResetCodeAccepted, Name: "marketauth_password_reset_code_accepted_total", Help: "Reset codes exchanged for a reset grant."},
	{ID: marketauth.MetricPasswordResetCodeRejected, Name: "marketauth_password_reset_code_rejected_total", Help: "Invalid or expired reset codes."},
	{ID: marketauth.MetricPasswordResetCompleted, Name: "marketauth_password_reset_completed_total", Help: "Completed password resets."},
	{ID: marketauth.MetricPasswordResetGrantRejected, Name: "marketauth_password_reset_grant_rejected_total", Help: "Reset grants rejected as invalid, expired or reused."},
	{ID: marketauth.MetricEmailVerificationRequest, Name: "marketauth_email_verification_request_total", Help: "Email verification codes requested."},
	{ID: marketauth.MetricEmailVerificationSuccess, Name: "marketauth_email_verification_success_total", Help: "Successful email verifications."},
	{ID: marketauth.MetricEmailVerificationFailure, Name: "marketauth_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: marketauth.MetricPhoneVerificationRequest, Name: "marketauth_phone_verification_request_total", Help: "Phone verification codes requested."},
	{ID: marketauth.MetricPhoneVerificationSuccess, Name: "marketauth_phone_verification_success_total", Help: "Successful phone verifications."},
	{ID: marketauth.MetricPhoneVerificationFailure, Name: "marketauth_phone_verification_failure_total", Help: "Failed phone verifications."},
	{ID: marketauth.MetricOTPIssued, Name: "marketauth_otp_issued_total", Help: "One-time codes generated."},
	{ID: marketauth.MetricNotificationFailed, Name: "marketauth_notification_failed_total", Help: "Notifier deliveries that returned an error."},
	{ID: marketauth.MetricRateLimitHit, Name: "marketauth_rate_limit_hit_total", Help: "Requests denied by the request throttle."},
	{ID: marketauth.MetricPasswordUpgraded, Name: "marketauth_password_upgraded_total", Help: "Stored hashes rehashed with current parameters on login."},
	{ID: marketauth.MetricAccountCreated, Name: "marketauth_account_created_total", Help: "Registered accounts."},
	{ID: marketauth.MetricAccountDuplicate, Name: "marketauth_account_duplicate_total", Help: "Registrations rejected because the email is taken."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: marketauth.MetricLoginLatency, Name: "marketauth_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBuckets is the number of buckets in every histogram, +Inf included.
const HistogramBuckets = marketauth.HistogramBuckets

// HistogramBounds are the finite upper bounds in seconds.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native
// histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to HistogramBuckets entries.
func NormalizeBuckets(raw []uint64) [HistogramBuckets]uint64 {
	var out [HistogramBuckets]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals, so the last
// entry is the sample count.
func CumulativeBuckets(raw [HistogramBuckets]uint64) [HistogramBuckets]uint64 {
	var out [HistogramBuckets]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
