package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/repository"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	directory *DirectoryService
	relay     *RelayService
	principal *domain.Principal
	observer  *domain.Observer
}

func newFixture(t *testing.T, policy LinkPolicy) *fixture {
	t.Helper()
	ctx := context.Background()

	principals := repository.NewInMemoryPrincipalRepository()
	observers := repository.NewInMemoryObserverRepository()

	principal := domain.NewPrincipal("Asha", "9876543210")
	principal.Code = "AB12CD"
	require.NoError(t, principals.Create(ctx, principal))

	directory := NewDirectoryService(principals, observers, discardLogger())
	observer, err := directory.LinkObserver(ctx, "Ravi", "ab12cd")
	require.NoError(t, err)

	relay := NewRelayService(directory, RelayOptions{Policy: policy, OutboxSize: 8}, discardLogger())

	return &fixture{
		directory: directory,
		relay:     relay,
		principal: principal,
		observer:  observer,
	}
}

// drain returns everything queued on conn without blocking.
func drain(conn *domain.Connection) []domain.Message {
	var out []domain.Message
	for {
		select {
		case msg, ok := <-conn.Events:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func ofType(msgs []domain.Message, t domain.MessageType) []domain.Message {
	var out []domain.Message
	for _, msg := range msgs {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}
