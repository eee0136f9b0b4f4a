package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    taskStatus
		wantErr bool
	}{
		{"Pending", statusPending, false},
		{"pending", statusPending, false},
		{"0", statusPending, false},
		{"Done", statusDone, false},
		{"DONE", statusDone, false},
		{"Completed", statusDone, false},
		{"1", statusDone, false},
		{"InProgress", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parseTaskStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseTaskStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("parseTaskStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskPatch_UnmarshalStatus(t *testing.T) {
	var p taskPatch
	if err := json.Unmarshal([]byte(`{"status":1}`), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status == nil || *p.Status != statusDone {
		t.Fatalf("expected numeric 1 to decode as Done, got %v", p.Status)
	}
	if p.Title != nil || p.Description != nil {
		t.Fatalf("expected absent fields to stay nil")
	}

	if err := json.Unmarshal([]byte(`{"status":"sideways"}`), &p); err == nil {
		t.Fatalf("expected an error for an unknown status")
	}
	if err := json.Unmarshal([]byte(`{"status":true}`), &p); err == nil {
		t.Fatalf("expected an error for a boolean status")
	}
}

func TestUser_PasswordHashNeverSerialized(t *testing.T) {
	u := user{ID: 1, Name: "Ana", Email: "ana@x.com", PasswordHash: []byte("hash"), IsActive: true, CreatedAt: time.Now()}
	js, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(js)
	if strings.Contains(s, "hash") || strings.Contains(s, "password") {
		t.Fatalf("password hash leaked: %s", s)
	}
	if !strings.Contains(s, `"isActive":true`) {
		t.Fatalf("expected camelCase fields, got %s", s)
	}
}

func TestTask_JSONShape(t *testing.T) {
	tk := task{ID: uuid.New(), Title: "Buy milk", Status: statusDone, UserID: 3}
	js, err := json.Marshal(tk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(js, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"id", "title", "description", "status", "createdAt", "userId"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("missing key %q in %s", key, js)
		}
	}
	if out["status"] != "Done" {
		t.Fatalf("expected textual status, got %v", out["status"])
	}
}
