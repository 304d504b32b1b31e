package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
)

// activityCap bounds the audit trail. Inserts go to the head; entries
// beyond the cap fall off on every append.
const activityCap = 100

// logActivity appends to the audit trail. Best-effort: a version
// conflict gets one fresh read, anything else is logged and
// swallowed. A failure here never fails the caller's operation.
func (s *Service) logActivity(ctx context.Context, entityType, action, actor, message string, details map[string]string) {
	record := domain.ActivityRecord{
		ID:        uuid.NewString(),
		Type:      entityType,
		Action:    action,
		Actor:     actor,
		Timestamp: s.now().UTC(),
		Details:   details,
		Message:   message,
	}

	for attempt := 0; attempt < 2; attempt++ {
		doc, version, err := docs.LoadOrInit[domain.ActivityRecord](ctx, s.store, docs.PathActivity)
		if err != nil {
			s.logger.Warn("activity log read failed", "action", action, "error", err)
			return
		}

		doc.Items = append([]domain.ActivityRecord{record}, doc.Items...)
		if len(doc.Items) > activityCap {
			doc.Items = doc.Items[:activityCap]
		}

		_, err = docs.Save(ctx, s.store, docs.PathActivity, doc,
			fmt.Sprintf("Log activity: %s %s", entityType, action), version, s.now())
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			s.logger.Warn("activity log append failed", "action", action, "error", err)
			return
		}
	}
	s.logger.Warn("activity log append lost to contention", "action", action)
}

func (s *Service) ListActivity(ctx context.Context) ([]domain.ActivityRecord, error) {
	doc, _, err := docs.LoadOrInit[domain.ActivityRecord](ctx, s.store, docs.PathActivity)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}
