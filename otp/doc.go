// Package otp creates, verifies and invalidates the short numeric codes that
// gate password reset, email verification and phone verification.
//
// Codes are hashed before they reach the credential.Store. Verification
// results never say why a code was rejected; a store fault is the only
// error path.
package otp
