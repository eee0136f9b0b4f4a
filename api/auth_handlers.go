package main

import (
	"errors"
	"net/http"
	"time"
)

func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := newValidator()
	v.checkCond(input.Email != "", "email", "must be provided")
	v.checkCond(input.Password != "", "password", "must be provided")
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	result, err := app.auth.Authenticate(r.Context(), input.Email, input.Password, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			app.invalidCredentialsResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = writeJSON(w, http.StatusOK, result, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) registerHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := newValidator()
	v.checkName(input.Name)
	v.checkEmail(input.Email)
	v.checkPassword("password", input.Password)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	u, err := app.auth.Register(r.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, errDuplicateEmail):
			app.errorResponse(w, r, http.StatusBadRequest, "a user with this email address already exists")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.sendMail(u.Email, "user_welcome.tmpl", map[string]any{
		"userID": u.ID,
		"name":   u.Name,
		"email":  u.Email,
	})

	headers := make(http.Header)
	headers.Set("Location", "/api/auth/profile")
	err = writeJSON(w, http.StatusCreated, u, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) profileHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	u, err := app.auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, errRecordNotFound):
			app.errorResponse(w, r, http.StatusNotFound, "user not found")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = writeJSON(w, http.StatusOK, u, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	var input struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	err := readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := newValidator()
	v.checkCond(input.CurrentPassword != "", "currentPassword", "must be provided")
	v.checkPassword("newPassword", input.NewPassword)
	if v.hasErrors() {
		app.failedValidationResponse(w, r, v.errors)
		return
	}

	u, err := app.auth.ChangePassword(r.Context(), claims.UserID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials), errors.Is(err, errRecordNotFound):
			app.errorResponse(w, r, http.StatusBadRequest, "invalid current password")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	changedAt := time.Now().UTC()
	if u.UpdatedAt != nil {
		changedAt = u.UpdatedAt.UTC()
	}
	app.sendMail(u.Email, "password_changed.tmpl", map[string]any{
		"name":      u.Name,
		"changedAt": changedAt.Format(time.RFC1123),
	})

	err = writeJSON(w, http.StatusOK, envelope{"message": "password changed successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) validateTokenHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := contextGetIdentity(r)
	if !ok {
		app.invalidAuthenticationTokenResponse(w, r)
		return
	}

	err := writeJSON(w, http.StatusOK, envelope{
		"valid":     true,
		"userId":    claims.UserID,
		"userName":  claims.Name,
		"userEmail": claims.Email,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// logoutHandler has no server-side effect; tokens stay valid until they expire.
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	err := writeJSON(w, http.StatusOK, envelope{"message": "logged out successfully"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
