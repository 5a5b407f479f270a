// Package repository is the persistence collaborator of the export
// subsystem. It assembles the raw record graph of one checkup; the mapper
// turns that graph into the read-only snapshot the pipeline consumes.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrCheckupNotFound is returned when no checkup exists for the given id.
var ErrCheckupNotFound = errors.New("checkup not found")

// CheckupRecord is one row of the checkups table.
type CheckupRecord struct {
	ID             int64
	ClientName     string
	SiteName       string
	Technician     string
	IslandCode     string
	EquipmentType  string
	SerialNumber   string
	EquipmentModel string
	OperatingHours int
	CycleCount     int
	Notes          string
	CheckupDate    time.Time
}

// CheckItemRecord is one row of the check_items table.
type CheckItemRecord struct {
	ID          int64
	CheckupID   int64
	ModuleName  string
	Position    int
	Description string
	Status      string
	Criticality string
	Notes       string
}

// PhotoRecord is one row of the item_photos table.
type PhotoRecord struct {
	ID         int64
	ItemID     int64
	FilePath   string
	Caption    string
	CapturedAt time.Time
	SizeBytes  int64
	Position   int
}

// SparePartRecord is one row of the spare_parts table.
type SparePartRecord struct {
	ID          int64
	CheckupID   int64
	PartCode    string
	Description string
	Quantity    int
	Urgency     string
	Notes       string
}

// CheckupDetails is the full record graph of one checkup.
type CheckupDetails struct {
	Checkup    CheckupRecord
	Items      []CheckItemRecord
	Photos     []PhotoRecord
	SpareParts []SparePartRecord
}

// CheckupRepository reads checkup record graphs from the database.
type CheckupRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCheckupRepository creates a new checkup repository.
func NewCheckupRepository(db *sql.DB, logger *zap.Logger) *CheckupRepository {
	return &CheckupRepository{
		db:     db,
		logger: logger,
	}
}

// GetDetails loads the checkup with its items, photos and spare parts.
// Items come back ordered by module then position, photos by position.
func (r *CheckupRepository) GetDetails(ctx context.Context, checkupID int64) (*CheckupDetails, error) {
	checkup, err := r.getCheckup(ctx, checkupID)
	if err != nil {
		return nil, err
	}

	details := &CheckupDetails{Checkup: *checkup}

	if details.Items, err = r.getItems(ctx, checkupID); err != nil {
		return nil, err
	}
	if details.Photos, err = r.getPhotos(ctx, checkupID); err != nil {
		return nil, err
	}
	if details.SpareParts, err = r.getSpareParts(ctx, checkupID); err != nil {
		return nil, err
	}

	r.logger.Debug("Loaded checkup details",
		zap.Int64("checkup_id", checkupID),
		zap.Int("items", len(details.Items)),
		zap.Int("photos", len(details.Photos)),
		zap.Int("spare_parts", len(details.SpareParts)))

	return details, nil
}

func (r *CheckupRepository) getCheckup(ctx context.Context, id int64) (*CheckupRecord, error) {
	query := `
		SELECT id, client_name, site_name, technician, island_code,
			equipment_type, serial_number, equipment_model,
			operating_hours, cycle_count, notes, checkup_date
		FROM checkups
		WHERE id = ?
	`

	var c CheckupRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.ClientName,
		&c.SiteName,
		&c.Technician,
		&c.IslandCode,
		&c.EquipmentType,
		&c.SerialNumber,
		&c.EquipmentModel,
		&c.OperatingHours,
		&c.CycleCount,
		&c.Notes,
		&c.CheckupDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrCheckupNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to load checkup", zap.Int64("checkup_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load checkup: %w", err)
	}
	return &c, nil
}

func (r *CheckupRepository) getItems(ctx context.Context, checkupID int64) ([]CheckItemRecord, error) {
	query := `
		SELECT id, checkup_id, module_name, position, description,
			status, criticality, notes
		FROM check_items
		WHERE checkup_id = ?
		ORDER BY module_name, position, id
	`

	rows, err := r.db.QueryContext(ctx, query, checkupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load check items: %w", err)
	}
	defer rows.Close()

	var items []CheckItemRecord
	for rows.Next() {
		var item CheckItemRecord
		if err := rows.Scan(
			&item.ID,
			&item.CheckupID,
			&item.ModuleName,
			&item.Position,
			&item.Description,
			&item.Status,
			&item.Criticality,
			&item.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan check item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CheckupRepository) getPhotos(ctx context.Context, checkupID int64) ([]PhotoRecord, error) {
	query := `
		SELECT p.id, p.item_id, p.file_path, p.caption, p.captured_at,
			p.size_bytes, p.position
		FROM item_photos p
		JOIN check_items i ON i.id = p.item_id
		WHERE i.checkup_id = ?
		ORDER BY p.item_id, p.position, p.id
	`

	rows, err := r.db.QueryContext(ctx, query, checkupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	defer rows.Close()

	var photos []PhotoRecord
	for rows.Next() {
		var photo PhotoRecord
		if err := rows.Scan(
			&photo.ID,
			&photo.ItemID,
			&photo.FilePath,
			&photo.Caption,
			&photo.CapturedAt,
			&photo.SizeBytes,
			&photo.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func (r *CheckupRepository) getSpareParts(ctx context.Context, checkupID int64) ([]SparePartRecord, error) {
	query := `
		SELECT id, checkup_id, part_code, description, quantity, urgency, notes
		FROM spare_parts
		WHERE checkup_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, checkupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spare parts: %w", err)
	}
	defer rows.Close()

	var parts []SparePartRecord
	for rows.Next() {
		var part SparePartRecord
		if err := rows.Scan(
			&part.ID,
			&part.CheckupID,
			&part.PartCode,
			&part.Description,
			&part.Quantity,
			&part.Urgency,
			&part.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan spare part: %w", err)
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}
