package notify_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/notify"
	"github.com/acornbank/acorn/internal/savings/queue"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.sent...)
}

func TestHandlersRenderMail(t *testing.T) {
	mailer := &recordingMailer{}
	d := queue.NewDispatcher(slog.New(slog.DiscardHandler))
	defer d.Stop()
	notify.RegisterHandlers(d, mailer)

	d.Enqueue(notify.JobWelcomeEmail, notify.WelcomePayload{
		Email: "ada@example.com", FirstName: "Ada",
	})
	d.Enqueue(notify.JobOneTimeCode, notify.CodePayload{
		Email: "ada@example.com", Code: "123456",
		Purpose: domain.PurposeLogin, Minutes: 10,
	})
	d.Enqueue(notify.JobWithdrawalAlert, notify.LedgerPayload{
		Email: "ada@example.com", RefID: "TXN12345678001",
		Type:   domain.TypeWithdrawal,
		Amount: decimal.RequireFromString("40.25"), Balance: decimal.RequireFromString("60.25"),
	})

	require.Eventually(t, func() bool {
		return len(mailer.messages()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	var subjects []string
	for _, msg := range mailer.messages() {
		require.Equal(t, "ada@example.com", msg.To)
		subjects = append(subjects, msg.Subject)
	}
	require.ElementsMatch(t, subjects, []string{
		"Welcome to Acorn",
		"Your login code",
		"Withdrawal processed",
	})

	for _, msg := range mailer.messages() {
		if msg.Subject == "Withdrawal processed" {
			require.Contains(t, msg.Body, "TXN12345678001")
			require.Contains(t, msg.Body, "40.25")
			require.Contains(t, msg.Body, "60.25")
		}
	}
}

func TestHandlerRejectsWrongPayload(t *testing.T) {
	mailer := &recordingMailer{}
	d := queue.NewDispatcher(slog.New(slog.DiscardHandler))
	defer d.Stop()
	notify.RegisterHandlers(d, mailer)

	// A string payload where a struct is expected fails the attempt and
	// is parked for a retry instead of reaching the mailer.
	d.Enqueue(notify.JobWelcomeEmail, "not a payload")

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, mailer.messages())
	require.Equal(t, 1, d.Pending())
}
