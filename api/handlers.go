package main

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	healthCheck := struct {
		Status      string `json:"status"`
		Environment string `json:"environment"`
		Version     string `json:"version"`
	}{
		Status:      "available",
		Environment: app.config.env,
		Version:     version,
	}
	err := writeJSON(w, http.StatusOK, healthCheck, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// queryValue looks a query parameter up by name, ignoring case.
func queryValue(qs url.Values, key string) string {
	if v := qs.Get(key); v != "" {
		return v
	}
	for k, vs := range qs {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func readInt(qs url.Values, key string, def int, v *validator) int {
	s := queryValue(qs, key)
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		v.checkCond(false, key, "must be an integer value")
		return def
	}
	return i
}

func readTaskFilter(qs url.Values, v *validator) taskFilter {
	f := defaultTaskFilter()

	if s := queryValue(qs, "status"); s != "" {
		status, err := parseTaskStatus(s)
		v.checkCond(err == nil, "status", "must be one of Pending, Done")
		if err == nil {
			f.Status = &status
		}
	}

	f.Search = queryValue(qs, "search")
	if s := queryValue(qs, "sortBy"); s != "" {
		f.SortBy = s
	}

	if s := queryValue(qs, "sortDescending"); s != "" {
		desc, err := strconv.ParseBool(s)
		v.checkCond(err == nil, "sortDescending", "must be a boolean value")
		f.SortDescending = desc
	} else if s := queryValue(qs, "sortOrder"); s != "" {
		switch strings.ToLower(s) {
		case "asc":
			f.SortDescending = false
		case "desc":
			f.SortDescending = true
		default:
			v.checkCond(false, "sortOrder", "must be asc or desc")
		}
	}

	f.Page = readInt(qs, "page", defaultPage, v)
	f.PageSize = readInt(qs, "pageSize", defaultPageSize, v)
	v.checkFilter(f)
	return f
}
