package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acornbank/acorn/internal/savings/cache"
	"github.com/acornbank/acorn/internal/savings/domain"
	"github.com/acornbank/acorn/internal/savings/notify"
	"github.com/acornbank/acorn/internal/savings/queue"
	"github.com/acornbank/acorn/internal/savings/service"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/internal/savings/store/drivers/sqlite"
	"github.com/acornbank/acorn/pkg/jwtx"
)

// env wires the full service stack against an in-memory database. The
// one-time-code mail job is intercepted so tests can read the codes a
// real user would get by email.
type env struct {
	store    store.Store
	cache    *cache.Memory
	queue    *queue.Dispatcher
	sessions *service.SessionService
	tokens   *service.TokenService
	devices  *service.DeviceService
	codes    *service.CodeService
	auth     *service.AuthService
	ledger   *service.LedgerService

	mailbox chan notify.CodePayload
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.DiscardHandler)
	q := queue.NewDispatcher(logger)
	t.Cleanup(q.Stop)

	e := &env{
		store:   st,
		cache:   cache.NewMemory(),
		queue:   q,
		mailbox: make(chan notify.CodePayload, 16),
	}
	q.Register(notify.JobOneTimeCode, func(_ context.Context, payload any) error {
		if p, ok := payload.(notify.CodePayload); ok {
			e.mailbox <- p
		}
		return nil
	})

	codec := jwtx.NewCodec("acorn-test", []byte("access-secret"), []byte("refresh-secret"))
	e.sessions = &service.SessionService{
		Store: st, Cache: e.cache,
		AccessTTL: codec.AccessTTL, RefreshTTL: codec.RefreshTTL,
	}
	e.tokens = &service.TokenService{Codec: codec, Cache: e.cache, Sessions: e.sessions}
	e.devices = &service.DeviceService{Store: st}
	e.codes = &service.CodeService{Store: st, Queue: q}
	e.auth = &service.AuthService{
		Store: st, Cache: e.cache, Sessions: e.sessions, Tokens: e.tokens,
		Devices: e.devices, Codes: e.codes, Queue: q,
	}
	e.ledger = &service.LedgerService{Store: st, Queue: q}
	return e
}

// nextCode waits for the next code of the given purpose to arrive in
// the intercepted mailbox.
func (e *env) nextCode(t *testing.T, purpose domain.CodePurpose) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-e.mailbox:
			if p.Purpose == purpose {
				return p.Code
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s code", purpose)
		}
	}
}

func (e *env) register(t *testing.T, email string) service.RegisterResult {
	t.Helper()
	res, err := e.auth.Register(context.Background(), service.RegisterParams{
		Email:     email,
		Password:  "correct horse battery staple",
		FirstName: "Ada",
		LastName:  "Lovelace",
		DeviceID:  "device-1",
		Device:    domain.DeviceMeta{Name: "Pixel 9", Platform: "android"},
	})
	require.NoError(t, err)
	return res
}
