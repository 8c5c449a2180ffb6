package models

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ImageRepository struct {
	conn func() *sqlx.DB
}

// NewImageRepository reads the connection through conn on every call so a
// reconnected pool is picked up.
func NewImageRepository(conn func() *sqlx.DB) *ImageRepository {
	return &ImageRepository{conn: conn}
}

// imageRow carries the JSON columns that ImageItem keeps as Go values.
type imageRow struct {
	ImageItem
	MetadataJSON []byte `db:"metadata_options"`
	AppliedJSON  []byte `db:"applied_metadata"`
	WarningsJSON []byte `db:"metadata_warnings"`
}

func (r *imageRow) toItem() (*ImageItem, error) {
	item := r.ImageItem
	if len(r.MetadataJSON) > 0 {
		if err := json.Unmarshal(r.MetadataJSON, &item.MetadataOptions); err != nil {
			return nil, fmt.Errorf("failed to decode metadata options: %w", err)
		}
	}
	if len(r.AppliedJSON) > 0 && string(r.AppliedJSON) != "null" {
		var applied AppliedMetadata
		if err := json.Unmarshal(r.AppliedJSON, &applied); err != nil {
			return nil, fmt.Errorf("failed to decode applied metadata: %w", err)
		}
		item.Applied = &applied
	}
	if len(r.WarningsJSON) > 0 {
		if err := json.Unmarshal(r.WarningsJSON, &item.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}
	return &item, nil
}

func encodeJSONColumns(item *ImageItem) (opts, applied, warnings []byte, err error) {
	if opts, err = json.Marshal(item.MetadataOptions); err != nil {
		return
	}
	if applied, err = json.Marshal(item.Applied); err != nil {
		return
	}
	w := item.Warnings
	if w == nil {
		w = []string{}
	}
	warnings, err = json.Marshal(w)
	return
}

func (r *ImageRepository) Create(item *ImageItem) error {
	opts, applied, warnings, err := encodeJSONColumns(item)
	if err != nil {
		return err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	query := `
		INSERT INTO images (id, name, original_size, input_format, output_format, status, boost_status,
			metadata_options, applied_metadata, metadata_warnings, original_key, thumbnail_url, blurhash, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`

	return r.conn().QueryRow(query,
		item.ID, item.Name, item.OriginalSize, item.InputFormat, item.OutputFormat, item.Status, item.BoostStatus,
		opts, applied, warnings, item.OriginalKey, item.ThumbnailURL, item.Blurhash, item.Width, item.Height).
		Scan(&item.CreatedAt)
}

func (r *ImageRepository) GetByID(id uuid.UUID) (*ImageItem, error) {
	var row imageRow
	err := r.conn().Get(&row, `SELECT * FROM images WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toItem()
}

func (r *ImageRepository) List() ([]*ImageItem, error) {
	var rows []imageRow
	if err := r.conn().Select(&rows, `SELECT * FROM images ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, err
	}
	items := make([]*ImageItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *ImageRepository) Update(item *ImageItem) error {
	opts, applied, warnings, err := encodeJSONColumns(item)
	if err != nil {
		return err
	}
	query := `
		UPDATE images SET
			output_format = $2, status = $3, engine = $4, compressed_size = $5, error = $6,
			boost_status = $7, boost_error = $8, metadata_options = $9, applied_metadata = $10,
			metadata_warnings = $11, final_size = $12, compressed_key = $13, final_key = $14
		WHERE id = $1`
	result, err := r.conn().Exec(query,
		item.ID, item.OutputFormat, item.Status, item.Engine, item.CompressedSize, item.Error,
		item.BoostStatus, item.BoostError, opts, applied,
		warnings, item.FinalSize, item.CompressedKey, item.FinalKey)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ImageRepository) Delete(id uuid.UUID) error {
	result, err := r.conn().Exec(`DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ImageRepository) DeleteAll() error {
	_, err := r.conn().Exec(`DELETE FROM images`)
	return err
}

func (r *ImageRepository) Count() (int, error) {
	var total int
	err := r.conn().Get(&total, `SELECT COUNT(*) FROM images`)
	return total, err
}
