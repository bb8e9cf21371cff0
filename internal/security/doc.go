// Package security summarizes the security posture of a marketauth
// configuration: token lifetimes, password hashing cost, lockout policy and
// which code flows are live, plus warnings where a setting falls below the
// recommended baseline.
//
// # What this package must NOT do
//
//   - Depend on the root marketauth package; callers flatten their config
//     into [ReportInput].
package security
