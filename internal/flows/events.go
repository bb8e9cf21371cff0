package flows

// Audit event names emitted by the flows.
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailure             = "login_failure"
	EventLoginLocked              = "login_locked"
	EventAccountLocked            = "account_locked"
	EventPasswordUpgraded         = "password_hash_upgraded"
	EventPasswordResetRequest     = "password_reset_request"
	EventPasswordResetCode        = "password_reset_code"
	EventPasswordResetConfirm     = "password_reset_confirm"
	EventPasswordResetReplay      = "password_reset_replay"
	EventEmailVerificationRequest = "email_verification_request"
	EventEmailVerificationConfirm = "email_verification_confirm"
	EventPhoneVerificationRequest = "phone_verification_request"
	EventPhoneVerificationConfirm = "phone_verification_confirm"
	EventNotificationFailed       = "notification_failed"
	EventRateLimitTriggered       = "rate_limit_triggered"
)
