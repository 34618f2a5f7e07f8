package insight

import "context"

// Gateway is a hosted completion service that can be asked for JSON output.
// It returns the raw model text; decoding and validation happen in the service.
type Gateway interface {
	Name() string
	Complete(ctx context.Context, c Completion) ([]byte, error)
}

// Repository port for persisting and querying runs
type Repository interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, tenant string, id RunID) (*Run, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Run, error)
}

// PayloadStore keeps offending model payloads for diagnostics.
type PayloadStore interface {
	PutPayload(ctx context.Context, key string, data []byte) (string, error)
}
