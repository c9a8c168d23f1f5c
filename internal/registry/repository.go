package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines persistence for entity and device records.
// The SQLite implementation is used in production; tests may use a mock.
type Repository interface {
	// GetEntity returns ErrEntityNotFound if the entity does not exist.
	GetEntity(ctx context.Context, id string) (*Entity, error)
	ListEntities(ctx context.Context) ([]Entity, error)

	// UpsertEntity inserts the record or refreshes its descriptive fields.
	// State columns of an existing row are left alone.
	UpsertEntity(ctx context.Context, e *Entity) error

	// UpdateEntityState stores a new snapshot.
	// Returns ErrEntityNotFound if the entity does not exist.
	UpdateEntityState(ctx context.Context, id string, state json.RawMessage, available bool, at time.Time) error

	DeleteEntity(ctx context.Context, id string) error

	ListDevices(ctx context.Context) ([]Device, error)
	UpsertDevice(ctx context.Context, d *Device) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entityColumns = `id, device_id, platform, key, name, unit, device_class, component,
	state, available, state_updated_at, created_at, updated_at`

// GetEntity retrieves an entity by ID.
func (r *SQLiteRepository) GetEntity(ctx context.Context, id string) (*Entity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity by id: %w", err)
	}
	return e, nil
}

// ListEntities retrieves all entities ordered by device and key.
func (r *SQLiteRepository) ListEntities(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY device_id, id`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return out, nil
}

// UpsertEntity inserts or refreshes an entity record.
func (r *SQLiteRepository) UpsertEntity(ctx context.Context, e *Entity) error {
	if e.ID == "" || e.DeviceID == "" || e.Platform == "" || e.Key == "" {
		return fmt.Errorf("%w: id, device_id, platform and key are required", ErrInvalidEntity)
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	state := e.State
	if len(state) == 0 {
		state = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_id = excluded.device_id,
			platform = excluded.platform,
			key = excluded.key,
			name = excluded.name,
			unit = excluded.unit,
			device_class = excluded.device_class,
			component = excluded.component,
			updated_at = excluded.updated_at`,
		e.ID, e.DeviceID, e.Platform, e.Key, e.Name, e.Unit, e.DeviceClass, e.Component,
		string(state), boolToInt(e.Available), formatTimePtr(e.StateUpdatedAt),
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting entity: %w", err)
	}
	return nil
}

// UpdateEntityState stores a new snapshot for an entity.
func (r *SQLiteRepository) UpdateEntityState(ctx context.Context, id string, state json.RawMessage, available bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE entities SET state = ?, available = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		string(state), boolToInt(available), at.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating entity state: %w", err)
	}
	return expectOneRow(res, ErrEntityNotFound)
}

// DeleteEntity removes an entity.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	return expectOneRow(res, ErrEntityNotFound)
}

// ListDevices retrieves all devices.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, installation_id, gateway_serial, device_id, model, roles, last_seen, created_at
		FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		var roles, createdAt string
		var lastSeen sql.NullString
		if err := rows.Scan(&d.ID, &d.InstallationID, &d.GatewaySerial, &d.DeviceID, &d.Model,
			&roles, &lastSeen, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		if err := json.Unmarshal([]byte(roles), &d.Roles); err != nil {
			return nil, fmt.Errorf("unmarshalling roles: %w", err)
		}
		d.LastSeen = parseTimePtr(lastSeen)
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return out, nil
}

// UpsertDevice inserts a device or refreshes its model, roles and last seen
// time.
func (r *SQLiteRepository) UpsertDevice(ctx context.Context, d *Device) error {
	roles, err := json.Marshal(d.Roles)
	if err != nil {
		return fmt.Errorf("marshalling roles: %w", err)
	}
	if d.Roles == nil {
		roles = []byte("[]")
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, installation_id, gateway_serial, device_id, model, roles, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model = excluded.model,
			roles = excluded.roles,
			last_seen = excluded.last_seen`,
		d.ID, d.InstallationID, d.GatewaySerial, d.DeviceID, d.Model, string(roles),
		formatTimePtr(d.LastSeen), d.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(s rowScanner) (*Entity, error) {
	var e Entity
	var state, createdAt, updatedAt string
	var available int
	var stateUpdatedAt sql.NullString

	if err := s.Scan(&e.ID, &e.DeviceID, &e.Platform, &e.Key, &e.Name, &e.Unit, &e.DeviceClass,
		&e.Component, &state, &available, &stateUpdatedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.State = json.RawMessage(state)
	e.Available = available != 0
	e.StateUpdatedAt = parseTimePtr(stateUpdatedAt)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
