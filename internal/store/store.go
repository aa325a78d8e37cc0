// go-meshbridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-meshbridge.
//
// go-meshbridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-meshbridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-meshbridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package store persists observed backhaul frames to SQLite (WAL mode).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ZaparooProject/go-meshbridge"
	"github.com/ZaparooProject/go-meshbridge/internal/logging"
)

// DB wraps *sql.DB with frame log helpers.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the SQLite file at path with WAL journal mode.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	raw, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	// one writer; WAL still allows concurrent readers
	raw.SetMaxOpenConns(1)
	return &DB{raw}, nil
}

// Migrate applies the schema. It is idempotent.
func Migrate(db *DB) error {
	if _, err := db.Exec(ddlFrames); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

const ddlFrames = `
CREATE TABLE IF NOT EXISTS frames (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    port        TEXT    NOT NULL DEFAULT '',
    direction   TEXT    NOT NULL,          -- 'rx' | 'tx'
    ok          INTEGER NOT NULL,          -- bool: 0 = checksum mismatch
    length      INTEGER NOT NULL,
    payload     BLOB,
    calculated  INTEGER NOT NULL,
    received    INTEGER NOT NULL,
    observed_at INTEGER NOT NULL           -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_frames_observed_at ON frames (observed_at DESC);
`

// Record is one stored frame.
type Record struct {
	ObservedAt time.Time
	Port       string
	Direction  string
	Payload    []byte
	ID         int64
	Length     int
	Calculated uint16
	Received   uint16
	OK         bool
}

// FrameLog writes every observed frame to the database. It implements
// meshbridge.FrameObserver.
type FrameLog struct {
	db *DB
}

// NewFrameLog returns a log over a migrated database.
func NewFrameLog(db *DB) *FrameLog {
	return &FrameLog{db: db}
}

// ObserveFrame implements meshbridge.FrameObserver. Write failures are logged.
func (l *FrameLog) ObserveFrame(ev meshbridge.FrameEvent) {
	if err := l.Insert(context.Background(), ev); err != nil {
		logging.Logger().WithError(err).Warn("store: frame not recorded")
	}
}

// Insert stores ev.
func (l *FrameLog) Insert(ctx context.Context, ev meshbridge.FrameEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO frames (port, direction, ok, length, payload, calculated, received, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Port, ev.Direction.String(), ev.OK, len(ev.Payload), ev.Payload,
		int64(ev.Calculated), int64(ev.Received), at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert frame: %w", err)
	}
	return nil
}

// Recent returns up to limit frames, newest first.
func (l *FrameLog) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, port, direction, ok, length, payload, calculated, received, observed_at
		 FROM frames ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query frames: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			calc, recv int64
			at         int64
		)
		if err := rows.Scan(&r.ID, &r.Port, &r.Direction, &r.OK, &r.Length, &r.Payload,
			&calc, &recv, &at); err != nil {
			return nil, fmt.Errorf("store: scan frame: %w", err)
		}
		r.Calculated = uint16(calc)
		r.Received = uint16(recv)
		r.ObservedAt = time.UnixMilli(at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate frames: %w", err)
	}
	return out, nil
}

// Counts returns the number of stored frames and how many failed their checksum.
func (l *FrameLog) Counts(ctx context.Context) (total, failed int64, err error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), 0) FROM frames`)
	if err := row.Scan(&total, &failed); err != nil {
		return 0, 0, fmt.Errorf("store: count frames: %w", err)
	}
	return total, failed, nil
}
