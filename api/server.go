package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	shutdownError := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("server_shutting_down", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
			return
		}

		app.logger.Info("server_waiting_for_background_tasks")
		app.wg.Wait()
		shutdownError <- nil
	}()

	app.logger.Info("server_starting", "addr", srv.Addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("server_stopped", "addr", srv.Addr)
	return nil
}

// background runs fn on its own goroutine, tracked so shutdown can wait for it.
func (app *application) background(fn func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.Error("background_task_panic", "error", fmt.Sprint(err))
			}
		}()
		fn()
	}()
}

func (app *application) sendMail(to, templateFile string, data any) {
	if app.mailer == nil {
		return
	}
	app.background(func() {
		if err := app.mailer.send(to, templateFile, data); err != nil {
			app.logger.Error("mail_send_failed", "template", templateFile, "error", err)
		}
	})
}
