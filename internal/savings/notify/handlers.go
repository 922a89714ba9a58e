package notify

import (
	"context"
	"fmt"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/queue"
)

// RegisterHandlers wires every notification job type into the
// dispatcher. Payloads of the wrong type are an enqueue-site bug and
// fail the job rather than being silently skipped.
func RegisterHandlers(d *queue.Dispatcher, mailer Mailer) {
	d.Register(JobWelcomeEmail, func(ctx context.Context, payload any) error {
		p, ok := payload.(WelcomePayload)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", JobWelcomeEmail, payload)
		}
		return mailer.Send(ctx, Message{
			To:      p.Email,
			Subject: "Welcome to Acorn",
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour savings account is ready. Verify your email to unlock transactions.",
				p.FirstName),
		})
	})

	d.Register(JobOneTimeCode, func(ctx context.Context, payload any) error {
		p, ok := payload.(CodePayload)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", JobOneTimeCode, payload)
		}
		return mailer.Send(ctx, Message{
			To:      p.Email,
			Subject: codeSubject(p.Purpose),
			Body: fmt.Sprintf(
				"Your code is %s. It expires in %d minutes and can be used once.",
				p.Code, p.Minutes),
		})
	})

	d.Register(JobLoginAlert, func(ctx context.Context, payload any) error {
		p, ok := payload.(LoginPayload)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", JobLoginAlert, payload)
		}
		return mailer.Send(ctx, Message{
			To:      p.Email,
			Subject: "New login to your account",
			Body: fmt.Sprintf(
				"Hi %s,\n\nWe noticed a login from %s (%s). If this wasn't you, change your password now.",
				p.FirstName, p.DeviceName, p.Platform),
		})
	})

	d.Register(JobDepositReceipt, ledgerHandler(mailer, JobDepositReceipt,
		"Deposit confirmed",
		"Your deposit %s of %s is complete. New balance: %s."))
	d.Register(JobWithdrawalAlert, ledgerHandler(mailer, JobWithdrawalAlert,
		"Withdrawal processed",
		"Your withdrawal %s of %s is complete. New balance: %s."))
	d.Register(JobInsufficientBalance, ledgerHandler(mailer, JobInsufficientBalance,
		"Withdrawal declined",
		"Your withdrawal %s of %s was declined. Available balance: %s."))
	d.Register(JobPendingTransaction, ledgerHandler(mailer, JobPendingTransaction,
		"Confirm your transaction",
		"Transaction %s of %s needs your PIN within 20 minutes. Current balance: %s."))
}

func ledgerHandler(mailer Mailer, jobType, subject, format string) queue.Handler {
	return func(ctx context.Context, payload any) error {
		p, ok := payload.(LedgerPayload)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", jobType, payload)
		}
		return mailer.Send(ctx, Message{
			To:      p.Email,
			Subject: subject,
			Body:    fmt.Sprintf(format, p.RefID, p.Amount.StringFixed(2), p.Balance.StringFixed(2)),
		})
	}
}

func codeSubject(purpose domain.CodePurpose) string {
	switch purpose {
	case domain.PurposeLogin:
		return "Your login code"
	case domain.PurposeTransaction:
		return "Your transaction code"
	case domain.PurposeDeviceVerification:
		return "Verify your device"
	case domain.PurposeEmailVerification:
		return "Verify your email"
	default:
		return "Your verification code"
	}
}
