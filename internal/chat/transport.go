package chat

import (
	"context"

	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/models"
)

// Transport hands a vetted message to the authoritative store and
// returns the durable copy, with the durable id assigned. The engine
// treats the returned message as the acknowledgement that maps the
// optimistic temporary id to the durable id.
type Transport interface {
	Send(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// StoreTransport persists messages through the repository. It is the
// default transport when the authoritative store is local.
type StoreTransport struct {
	store database.Store
}

func NewStoreTransport(store database.Store) *StoreTransport {
	return &StoreTransport{store: store}
}

func (t *StoreTransport) Send(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.store.CreateMessage(msg)
}
