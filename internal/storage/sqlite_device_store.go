package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteDeviceStore implements DeviceStore backed by SQLite.
type SQLiteDeviceStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDeviceStore returns a new SQLiteDeviceStore.
func NewSQLiteDeviceStore(db *sql.DB) *SQLiteDeviceStore {
	return &SQLiteDeviceStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLiteDeviceStore) Upsert(ctx context.Context, d Device) (bool, error) {
	if d.Instance == "" {
		return false, fmt.Errorf("upserting device: instance is required")
	}
	seen := d.LastSeen
	if seen.IsZero() {
		seen = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin device upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM devices WHERE instance = ?", d.Instance).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking device %q: %w", d.Instance, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (instance, host, addr, port, board, model, stream_port, framesize, pixformat, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance) DO UPDATE SET
			host = excluded.host,
			addr = excluded.addr,
			port = excluded.port,
			board = excluded.board,
			model = excluded.model,
			stream_port = excluded.stream_port,
			framesize = excluded.framesize,
			pixformat = excluded.pixformat,
			last_seen = excluded.last_seen`,
		d.Instance, d.Host, d.Addr, d.Port, d.Board, d.Model,
		d.StreamPort, d.FrameSize, d.PixFormat, seen, seen,
	)
	if err != nil {
		return false, fmt.Errorf("upserting device %q: %w", d.Instance, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit device upsert: %w", err)
	}
	return exists == 0, nil
}

func (s *SQLiteDeviceStore) Get(ctx context.Context, instance string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance, host, addr, port, board, model, stream_port, framesize, pixformat, first_seen, last_seen
		FROM devices WHERE instance = ?`, instance)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "device", ID: instance}
	}
	if err != nil {
		return nil, fmt.Errorf("querying device %q: %w", instance, err)
	}
	return &d, nil
}

func (s *SQLiteDeviceStore) List(ctx context.Context) (devices []Device, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance, host, addr, port, board, model, stream_port, framesize, pixformat, first_seen, last_seen
		FROM devices
		ORDER BY last_seen DESC, instance`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	devices = []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(sc scanner) (Device, error) {
	var d Device
	err := sc.Scan(&d.Instance, &d.Host, &d.Addr, &d.Port, &d.Board, &d.Model,
		&d.StreamPort, &d.FrameSize, &d.PixFormat, &d.FirstSeen, &d.LastSeen)
	return d, err
}
