package recorder

import (
	"context"

	"PairSentinel/internal/model"
)

// NoopRecorder is used when the SQLite mirror is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SaveTable(_ context.Context, _ *model.ResultTable) error { return nil }
func (n *NoopRecorder) LoadTable(_ context.Context) (*model.ResultTable, error) {
	return &model.ResultTable{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
