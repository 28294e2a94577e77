package todos

import (
	"context"

	"todo-sync-go/internal/domain/collection"
)

// Store is the remote collection the engine mirrors. Implemented by
// collection.Service in process and by httpclient.Store over the network.
//
// onError reports a subscription that broke after Subscribe returned. The
// subscription may recover and deliver snapshots again.
type Store interface {
	Subscribe(ctx context.Context, path string, onSnapshot func(collection.Snapshot), onError func(error)) (func(), error)
	Create(ctx context.Context, path string, fields collection.Fields) (string, error)
	Update(ctx context.Context, recordPath string, fields collection.Fields) error
	Delete(ctx context.Context, recordPath string) error
}
