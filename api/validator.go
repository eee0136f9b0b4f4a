package main

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

type validator struct {
	errors map[string]string
}

func newValidator() *validator {
	return &validator{
		errors: make(map[string]string),
	}
}

func (v *validator) hasErrors() bool {
	return len(v.errors) != 0
}

func (v *validator) checkCond(cond bool, key, msg string) {
	if cond {
		return
	}
	if _, ok := v.errors[key]; !ok {
		v.errors[key] = msg
	}
}

func (v *validator) checkMaxChars(s string, n int, key string) {
	v.checkCond(utf8.RuneCountInString(s) <= n, key, "must be at most "+strconv.Itoa(n)+" characters")
}

func (v *validator) checkName(name string) {
	v.checkCond(strings.TrimSpace(name) != "", "name", "must be provided")
	v.checkMaxChars(name, 100, "name")
}

func (v *validator) checkEmail(email string) {
	v.checkCond(email != "", "email", "must be provided")
	v.checkMaxChars(email, 255, "email")
	v.checkCond(emailRegexp.MatchString(email), "email", "must be a valid email address")
}

// checkPassword bounds the length at 72 bytes, the most bcrypt will consume.
func (v *validator) checkPassword(key, password string) {
	v.checkCond(password != "", key, "must be provided")
	v.checkCond(len(password) >= 6, key, "must be at least 6 characters long")
	v.checkCond(len(password) <= 72, key, "must be at most 72 bytes long")
}

func (v *validator) checkTitle(title string) {
	v.checkCond(strings.TrimSpace(title) != "", "title", "must be provided")
	v.checkMaxChars(title, 200, "title")
}

func (v *validator) checkDescription(description string) {
	v.checkMaxChars(description, 1000, "description")
}

func (v *validator) checkFilter(f taskFilter) {
	v.checkCond(f.Page >= 1, "page", "must be greater than zero")
	v.checkCond(f.Page <= maxPage, "page", "must be at most "+strconv.Itoa(maxPage))
	v.checkCond(f.PageSize >= 1, "pageSize", "must be greater than zero")
	v.checkCond(f.PageSize <= maxPageSize, "pageSize", "must be at most "+strconv.Itoa(maxPageSize))
	v.checkMaxChars(f.Search, 200, "search")
}
