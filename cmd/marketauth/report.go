package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Agossa1/marketauth"
)

func newReportCmd(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the security posture of the loaded configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.settings.Auth.Validate(); err != nil {
				return err
			}
			report := a.settings.Auth.SecurityReport()
			printReport(a.stdout, report)
			if strict && len(report.Warnings) > 0 {
				return errors.New("configuration has security warnings")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any warning is reported")
	return cmd
}

func printReport(w io.Writer, r marketauth.SecurityReport) {
	fmt.Fprintf(w, "key from file:        %t\n", r.KeyFromFile)
	fmt.Fprintf(w, "access ttl:           %s (remember me %s)\n", r.AccessTTL, r.RememberMeAccessTTL)
	fmt.Fprintf(w, "refresh ttl:          %s\n", r.RefreshTTL)
	fmt.Fprintf(w, "argon2id:             m=%d t=%d p=%d\n", r.Argon2.Memory, r.Argon2.Time, r.Argon2.Parallelism)
	fmt.Fprintf(w, "lockout:              %d attempts, %s\n", r.LockoutAttempts, r.LockoutDuration)
	fmt.Fprintf(w, "verified login:       %t\n", r.VerifiedLoginRequired)
	fmt.Fprintf(w, "email verification:   %t\n", r.EmailVerificationActive)
	fmt.Fprintf(w, "password reset:       %t (verified only %t)\n", r.PasswordResetActive, r.ResetRequiresVerified)
	fmt.Fprintf(w, "phone verification:   %t\n", r.PhoneVerificationActive)
	fmt.Fprintf(w, "request throttling:   %t\n", r.RequestThrottlingActive)
	fmt.Fprintf(w, "audit:                %t\n", r.AuditActive)
	if len(r.Warnings) == 0 {
		fmt.Fprintln(w, "warnings:             none")
		return
	}
	fmt.Fprintln(w, "warnings:")
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
