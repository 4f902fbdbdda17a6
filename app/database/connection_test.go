package database

import "testing"

func TestNewConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewConnection("mysql", "user:pass@/db")
	if err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver   string
		query    string
		expected string
	}{
		{DriverSQLite, "SELECT * FROM jobs WHERE id = ? AND status = ?", "SELECT * FROM jobs WHERE id = ? AND status = ?"},
		{DriverPostgres, "SELECT * FROM jobs WHERE id = ? AND status = ?", "SELECT * FROM jobs WHERE id = $1 AND status = $2"},
		{DriverPostgres, "SELECT COUNT(*) FROM jobs", "SELECT COUNT(*) FROM jobs"},
		{DriverPostgres, "VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)"},
	}

	for _, tt := range tests {
		if got := rebind(tt.driver, tt.query); got != tt.expected {
			t.Errorf("rebind(%s, %q): expected %q, got %q", tt.driver, tt.query, tt.expected, got)
		}
	}
}

func TestJobStatusValid(t *testing.T) {
	for _, s := range []JobStatus{JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusError} {
		if !s.Valid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if JobStatus("cancelled").Valid() {
		t.Error("Expected unknown status to be invalid")
	}
}
