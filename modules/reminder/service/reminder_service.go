package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"tutorbase/core/constants"
	"tutorbase/core/logger"
)

// SessionReminderPayload is the task body for an upcoming-session
// reminder.
type SessionReminderPayload struct {
	EntryID uuid.UUID `json:"entry_id"`
}

// ReminderService enqueues session reminders ahead of each occurrence's
// start time.
type ReminderService struct {
	client *asynq.Client
	lead   time.Duration
}

func NewReminderService(client *asynq.Client, lead time.Duration) *ReminderService {
	return &ReminderService{client: client, lead: lead}
}

// ScheduleSessionReminder queues one reminder task to fire lead minutes
// before startsAt. Sessions already inside the lead window are skipped.
func (s *ReminderService) ScheduleSessionReminder(ctx context.Context, entryID uuid.UUID, startsAt time.Time) error {
	fireAt := startsAt.Add(-s.lead)
	if !fireAt.After(time.Now()) {
		return nil
	}

	payload, err := json.Marshal(SessionReminderPayload{EntryID: entryID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(constants.TaskTypeSessionReminder, payload)
	info, err := s.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(fireAt),
		asynq.MaxRetry(3),
		asynq.Unique(24*time.Hour),
	)
	if err != nil {
		return err
	}

	logger.Debug("ReminderService:ScheduleSessionReminder",
		"entry_id", entryID,
		"task_id", info.ID,
		"process_at", fireAt,
	)
	return nil
}
