// Package outcomes is the optional booking-outcome audit sink. It exists
// for operators reading back what the bot did overnight; nothing in the
// booking flow reads from it.
package outcomes

import (
	"context"
	"errors"
	"strings"
	"time"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

// Record is one finished booking attempt.
type Record struct {
	At        time.Time `json:"at"`
	AttemptID string    `json:"attempt_id"`
	Identity  string    `json:"identity"`
	User      string    `json:"user"`
	Date      string    `json:"date"`
	Class     string    `json:"class"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Seats     int       `json:"seats_remaining,omitempty"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
}

// Store persists outcome records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) when outcomes recording is disabled.
func Open(cfg config.OutcomesConfig, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown outcomes driver: " + driver)
	}
}
