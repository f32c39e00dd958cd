package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/bomlens/backend/internal/storage/models"
	"github.com/bomlens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		image_ref TEXT,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		component_count INTEGER NOT NULL,
		total_weight_kg REAL NOT NULL,
		primary_hs_code TEXT,
		effective_rate_percent REAL,
		total_duty_usd REAL,
		confidence TEXT,
		report_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_route ON reports(origin, destination);

	CREATE TABLE IF NOT EXISTS catalog_entries (
		id TEXT PRIMARY KEY,
		part_number TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		material TEXT,
		dimensions TEXT,
		weight_kg REAL NOT NULL,
		raw_materials TEXT,
		price_usd REAL,
		source_url TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_name ON catalog_entries(name);
	CREATE INDEX IF NOT EXISTS idx_catalog_material ON catalog_entries(material);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertReport(record *models.ReportRecord) error {
	query := `
		INSERT INTO reports (id, image_ref, origin, destination, component_count, total_weight_kg,
			primary_hs_code, effective_rate_percent, total_duty_usd, confidence, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.ImageRef,
		record.Origin,
		record.Destination,
		record.ComponentCount,
		record.TotalWeightKg,
		record.PrimaryHSCode,
		record.EffectiveRatePercent,
		record.TotalDutyUSD,
		record.Confidence,
		record.ReportJSON,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	logger.Debug("Report recorded", zap.String("report_id", record.ID))
	return nil
}

func (c *Client) GetReport(id string) (*models.ReportRecord, error) {
	query := `
		SELECT id, image_ref, origin, destination, component_count, total_weight_kg,
			primary_hs_code, effective_rate_percent, total_duty_usd, confidence, report_json, created_at
		FROM reports WHERE id = ?
	`

	var r models.ReportRecord
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&r.ID,
		&r.ImageRef,
		&r.Origin,
		&r.Destination,
		&r.ComponentCount,
		&r.TotalWeightKg,
		&r.PrimaryHSCode,
		&r.EffectiveRatePercent,
		&r.TotalDutyUSD,
		&r.Confidence,
		&r.ReportJSON,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}

// ListReports returns the most recent runs without the serialized report
// bodies.
func (c *Client) ListReports(limit int) ([]models.ReportRecord, error) {
	query := `
		SELECT id, image_ref, origin, destination, component_count, total_weight_kg,
			primary_hs_code, effective_rate_percent, total_duty_usd, confidence, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var records []models.ReportRecord
	for rows.Next() {
		var r models.ReportRecord
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.ImageRef,
			&r.Origin,
			&r.Destination,
			&r.ComponentCount,
			&r.TotalWeightKg,
			&r.PrimaryHSCode,
			&r.EffectiveRatePercent,
			&r.TotalDutyUSD,
			&r.Confidence,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertCatalogEntry(entry *models.CatalogEntry) error {
	query := `
		INSERT INTO catalog_entries (id, part_number, name, material, dimensions, weight_kg,
			raw_materials, price_usd, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(part_number) DO UPDATE SET
			name = excluded.name,
			material = excluded.material,
			dimensions = excluded.dimensions,
			weight_kg = excluded.weight_kg,
			raw_materials = excluded.raw_materials,
			price_usd = excluded.price_usd,
			source_url = excluded.source_url
	`

	_, err := c.db.Exec(
		query,
		entry.ID,
		entry.PartNumber,
		entry.Name,
		entry.Material,
		entry.Dimensions,
		entry.WeightKg,
		entry.RawMaterials,
		entry.PriceUSD,
		entry.SourceURL,
		entry.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert catalog entry: %w", err)
	}

	return nil
}

func (c *Client) CountCatalogEntries() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM catalog_entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog entries: %w", err)
	}
	return count, nil
}
