package events

import (
	"context"

	"github.com/hilthontt/watchsync/internal/domain"
)

// AuditSink writes room events straight to the audit log.
type AuditSink struct {
	repository domain.RoomAuditRepository
}

func NewAuditSink(repository domain.RoomAuditRepository) *AuditSink {
	return &AuditSink{repository: repository}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Handle(ctx context.Context, event *domain.RoomEvent) error {
	return s.repository.Log(ctx, event)
}
