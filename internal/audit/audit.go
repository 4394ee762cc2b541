// Package audit writes the append-only activity trail. Recording is
// best-effort: a failed insert is logged and never fails the operation
// being audited.
package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/model"
)

// Sink is where audit entries land. internal/store implements it.
type Sink interface {
	InsertActivity(ctx context.Context, entry model.Activity) error
}

// Recorder tags every entry with a fixed actor.
type Recorder struct {
	sink  Sink
	actor string
}

func NewRecorder(sink Sink, actor string) *Recorder {
	return &Recorder{sink: sink, actor: actor}
}

// Record writes one activity entry. Metadata must be JSON-marshalable.
func (r *Recorder) Record(ctx context.Context, action, entityType, entityID string, metadata any) {
	var raw json.RawMessage
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			zap.L().Warn("audit: marshal metadata failed",
				zap.String("action", action),
				zap.Error(err),
			)
		} else {
			raw = b
		}
	}

	err := r.sink.InsertActivity(ctx, model.Activity{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      r.actor,
		Metadata:   raw,
	})
	if err != nil {
		zap.L().Warn("audit: record failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
