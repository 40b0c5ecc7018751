package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dataset describes a stored landmark dataset. Labels holds class names in
// index order.
type Dataset struct {
	ID        string
	Name      string
	Labels    []string
	SourceDir string
	Samples   int
	Failed    int
	CreatedAt time.Time
}

// Sample is one normalized feature vector and its class index.
type Sample struct {
	Index    int
	Label    int
	Source   string
	Features []float64
}

// DatasetRepository stores datasets and their samples.
type DatasetRepository struct {
	db *sql.DB
}

// Datasets returns the dataset repository for this store.
func (s *Store) Datasets() *DatasetRepository {
	return &DatasetRepository{db: s.db}
}

// Save stores d and its samples in one transaction, replacing any dataset
// with the same name. A missing ID is generated.
func (r *DatasetRepository) Save(d *Dataset, samples []Sample) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Samples = len(samples)
	d.CreatedAt = time.Now()

	labels, err := json.Marshal(d.Labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM datasets WHERE name = ?`, d.Name); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO datasets (id, name, labels, source_dir, samples, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, string(labels), d.SourceDir, d.Samples, d.Failed, d.CreatedAt,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (dataset_id, sample_index, label, source, features) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range samples {
		features, err := json.Marshal(s.Features)
		if err != nil {
			return fmt.Errorf("encode sample %d: %w", i, err)
		}
		if _, err := stmt.Exec(d.ID, i, s.Label, s.Source, string(features)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByName retrieves dataset metadata by name.
func (r *DatasetRepository) GetByName(name string) (*Dataset, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, labels, source_dir, samples, failed, created_at
		 FROM datasets WHERE name = ?`,
		name,
	))
}

// GetByID retrieves dataset metadata by ID.
func (r *DatasetRepository) GetByID(id string) (*Dataset, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, labels, source_dir, samples, failed, created_at
		 FROM datasets WHERE id = ?`,
		id,
	))
}

func (r *DatasetRepository) scanOne(row *sql.Row) (*Dataset, error) {
	d, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(row scanner) (*Dataset, error) {
	d := &Dataset{}
	var labels string
	if err := row.Scan(&d.ID, &d.Name, &labels, &d.SourceDir, &d.Samples, &d.Failed, &d.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labels), &d.Labels); err != nil {
		return nil, fmt.Errorf("decode labels of dataset %s: %w", d.Name, err)
	}
	return d, nil
}

// List retrieves all datasets, newest first.
func (r *DatasetRepository) List() ([]*Dataset, error) {
	rows, err := r.db.Query(
		`SELECT id, name, labels, source_dir, samples, failed, created_at
		 FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Samples retrieves the samples of a dataset in insertion order.
func (r *DatasetRepository) Samples(datasetID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT sample_index, label, source, features
		 FROM samples
		 WHERE dataset_id = ?
		 ORDER BY sample_index`,
		datasetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var s Sample
		var features string
		if err := rows.Scan(&s.Index, &s.Label, &s.Source, &features); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &s.Features); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", s.Index, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a dataset and, through the cascade, its samples.
func (r *DatasetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM datasets WHERE id = ?`, id)
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
