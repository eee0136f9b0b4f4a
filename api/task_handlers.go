package main

import (
	"errors"
	"net/http"
)

func (app *application) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	v := newValidator()
	f := readTaskFilter(r.URL.Query(), v)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	page, err := app.tasks.List(r.Context(), claims.UserID, f)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, page, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	id, err := readIDParam(r)
	if err != nil {
		app.errorResponse(w, r, http.StatusNotFound, "task not found")
		return
	}

	t, err := app.tasks.Get(r.Context(), id, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, errRecordNotFound):
			app.errorResponse(w, r, http.StatusNotFound, "task not found")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = writeJSON(w, http.StatusOK, t, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := newValidator()
	v.checkTitle(input.Title)
	v.checkDescription(input.Description)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	t, err := app.tasks.Create(r.Context(), claims.UserID, input.Title, input.Description)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", "/api/tasks/"+t.ID.String())
	err = writeJSON(w, http.StatusCreated, t, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	id, err := readIDParam(r)
	if err != nil {
		app.errorResponse(w, r, http.StatusNotFound, "task not found")
		return
	}

	var input taskPatch
	err = readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := newValidator()
	if input.Title != nil {
		v.checkMaxChars(*input.Title, 200, "title")
	}
	if input.Description != nil {
		v.checkDescription(*input.Description)
	}
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	t, err := app.tasks.Update(r.Context(), id, claims.UserID, input)
	if err != nil {
		switch {
		case errors.Is(err, errRecordNotFound):
			app.errorResponse(w, r, http.StatusNotFound, "task not found")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = writeJSON(w, http.StatusOK, t, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	id, err := readIDParam(r)
	if err != nil {
		app.errorResponse(w, r, http.StatusNotFound, "task not found")
		return
	}

	deleted, err := app.tasks.Delete(r.Context(), id, claims.UserID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if !deleted {
		app.errorResponse(w, r, http.StatusNotFound, "task not found")
		return
	}

	err = writeJSON(w, http.StatusOK, envelope{"message": "task deleted successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) taskStatsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	stats, err := app.tasks.Stats(r.Context(), claims.UserID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, stats, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
