package main

import (
	"context"
	"errors"
	"fmt"
)

const (
	demoEmail    = "admin@taskforu.com"
	demoPassword = "Admin123!"
	demoName     = "Administrator"
)

// seedDemo creates the demo account with two sample tasks. It does nothing
// when the account already exists.
func (app *application) seedDemo(ctx context.Context) error {
	u, err := app.auth.Register(ctx, demoName, demoEmail, demoPassword)
	if err != nil {
		if errors.Is(err, errDuplicateEmail) {
			app.logger.Info("demo_seed_skipped", "email", demoEmail)
			return nil
		}
		return fmt.Errorf("seed demo user: %w", err)
	}

	_, err = app.tasks.Create(ctx, u.ID, "First task", "Explore TaskForU and create your own tasks")
	if err != nil {
		return fmt.Errorf("seed demo tasks: %w", err)
	}
	second, err := app.tasks.Create(ctx, u.ID, "Second task", "Mark a task as done")
	if err != nil {
		return fmt.Errorf("seed demo tasks: %w", err)
	}
	done := statusDone
	_, err = app.tasks.Update(ctx, second.ID, u.ID, taskPatch{Status: &done})
	if err != nil {
		return fmt.Errorf("seed demo tasks: %w", err)
	}

	app.logger.Info("demo_seeded", "user_id", u.ID, "email", demoEmail)
	return nil
}
