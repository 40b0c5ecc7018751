package store

import (
	"database/sql"
	"time"
)

// Prediction is one logged recognition result.
type Prediction struct {
	ID         int64     `json:"id"`
	ModelID    string    `json:"model_id,omitempty"`
	Sign       string    `json:"sign"`
	Confidence float64   `json:"confidence"`
	HasHand    bool      `json:"has_hand"`
	Source     string    `json:"source"` // "upload", "base64", "live", ...
	CreatedAt  time.Time `json:"created_at"`
}

// PredictionRepository is the append-only prediction log.
type PredictionRepository struct {
	db *sql.DB
}

// Predictions returns the prediction repository for this store.
func (s *Store) Predictions() *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// Create appends p to the log.
func (r *PredictionRepository) Create(p *Prediction) error {
	p.CreatedAt = time.Now()
	result, err := r.db.Exec(
		`INSERT INTO predictions (model_id, sign, confidence, has_hand, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ModelID, p.Sign, p.Confidence, p.HasHand, p.Source, p.CreatedAt,
	)
	if err != nil {
		return err
	}
	p.ID, err = result.LastInsertId()
	return err
}

// Recent returns up to limit entries, newest first.
func (r *PredictionRepository) Recent(limit int) ([]*Prediction, error) {
	rows, err := r.db.Query(
		`SELECT id, model_id, sign, confidence, has_hand, source, created_at
		 FROM predictions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prediction
	for rows.Next() {
		p := &Prediction{}
		if err := rows.Scan(&p.ID, &p.ModelID, &p.Sign, &p.Confidence, &p.HasHand, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountBySign returns how often each sign was predicted.
func (r *PredictionRepository) CountBySign() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT sign, COUNT(*) FROM predictions GROUP BY sign`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var sign string
		var n int
		if err := rows.Scan(&sign, &n); err != nil {
			return nil, err
		}
		out[sign] = n
	}
	return out, rows.Err()
}

// Prune deletes entries older than the given age and reports how many went.
func (r *PredictionRepository) Prune(olderThan time.Duration) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM predictions WHERE created_at < ?`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
