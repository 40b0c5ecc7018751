package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Model is a registry entry for a trained model file.
type Model struct {
	ID                 string          `json:"id"`
	Path               string          `json:"path"`
	Letters            string          `json:"letters"` // "all" or "a-f"
	DatasetID          string          `json:"dataset_id,omitempty"`
	Params             json.RawMessage `json:"params"`
	Tuned              bool            `json:"tuned"`
	CVAccuracy         float64         `json:"cv_accuracy"`
	ValidationAccuracy float64         `json:"validation_accuracy"`
	TestAccuracy       float64         `json:"test_accuracy"`
	Report             json.RawMessage `json:"report,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ModelRepository records training runs.
type ModelRepository struct {
	db *sql.DB
}

// Models returns the model repository for this store.
func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

const modelColumns = `id, path, letters, COALESCE(dataset_id, ''), params, tuned,
	cv_accuracy, validation_accuracy, test_accuracy, report, created_at`

// Create inserts a model entry. A missing ID is generated.
func (r *ModelRepository) Create(m *Model) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	if len(m.Params) == 0 {
		m.Params = json.RawMessage("{}")
	}

	var datasetID interface{}
	if m.DatasetID != "" {
		datasetID = m.DatasetID
	}

	_, err := r.db.Exec(
		`INSERT INTO models (id, path, letters, dataset_id, params, tuned, cv_accuracy,
		 validation_accuracy, test_accuracy, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Path, m.Letters, datasetID, string(m.Params), m.Tuned, m.CVAccuracy,
		m.ValidationAccuracy, m.TestAccuracy, string(m.Report), m.CreatedAt,
	)
	return err
}

// SetTestResult records a held-out test evaluation for an existing entry.
func (r *ModelRepository) SetTestResult(id string, accuracy float64, report json.RawMessage) error {
	result, err := r.db.Exec(
		`UPDATE models SET test_accuracy = ?, report = ? WHERE id = ?`,
		accuracy, string(report), id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a model entry by ID.
func (r *ModelRepository) GetByID(id string) (*Model, error) {
	return scanModelRow(r.db.QueryRow(`SELECT `+modelColumns+` FROM models WHERE id = ?`, id))
}

// Latest returns the most recently created entry, optionally restricted to
// a model file path.
func (r *ModelRepository) Latest(path string) (*Model, error) {
	if path == "" {
		return scanModelRow(r.db.QueryRow(`SELECT ` + modelColumns + ` FROM models ORDER BY created_at DESC LIMIT 1`))
	}
	return scanModelRow(r.db.QueryRow(
		`SELECT `+modelColumns+` FROM models WHERE path = ? ORDER BY created_at DESC LIMIT 1`, path))
}

// List returns all entries, newest first.
func (r *ModelRepository) List() ([]*Model, error) {
	rows, err := r.db.Query(`SELECT ` + modelColumns + ` FROM models ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a model entry. The model file is left alone.
func (r *ModelRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanModelRow(row *sql.Row) (*Model, error) {
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func scanModel(row scanner) (*Model, error) {
	m := &Model{}
	var params, report string
	err := row.Scan(&m.ID, &m.Path, &m.Letters, &m.DatasetID, &params, &m.Tuned,
		&m.CVAccuracy, &m.ValidationAccuracy, &m.TestAccuracy, &report, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Params = json.RawMessage(params)
	if report != "" {
		m.Report = json.RawMessage(report)
	}
	return m, nil
}
