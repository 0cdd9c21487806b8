package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"tutorbase/core/constants"
	"tutorbase/core/database"
	"tutorbase/core/logger"
	"tutorbase/modules/reminder/repository"
	"tutorbase/modules/reminder/service"
)

// RunWorker starts the asynq consumer that delivers session reminders.
// Blocks until the server stops.
func RunWorker(redisOpt asynq.RedisClientOpt, db database.IDatabase) error {
	repo := repository.NewReminderRepository(db)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(constants.TaskTypeSessionReminder, func(ctx context.Context, task *asynq.Task) error {
		var payload service.SessionReminderPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal reminder payload: %w: %w", err, asynq.SkipRetry)
		}

		snap, err := repo.GetSessionSnapshot(ctx, payload.EntryID)
		if err != nil {
			return err
		}
		if snap == nil || !snap.Deliverable() {
			logger.Debug("ReminderWorker:Skip", "entry_id", payload.EntryID)
			return nil
		}

		// Delivery channels (mail, push) hang off here; for now the
		// reminder lands in the structured log stream.
		logger.Info("ReminderWorker:SessionReminder",
			"entry_id", snap.ID,
			"location_id", snap.LocationID,
			"start_time", snap.StartTime,
		)
		return nil
	})

	return srv.Run(mux)
}
