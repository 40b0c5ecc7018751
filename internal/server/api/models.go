package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
	"github.com/ahmedibraahiim/asl/internal/report"
	"github.com/ahmedibraahiim/asl/internal/store"
)

// ModelsHandler serves the training registry and hot reloads of the model
// file.
type ModelsHandler struct {
	rec       *recognizer.Recognizer
	store     *store.Store
	modelPath string
}

// NewModelsHandler returns a handler that reloads modelPath into rec. st may
// be nil; registry endpoints then answer 503.
func NewModelsHandler(rec *recognizer.Recognizer, st *store.Store, modelPath string) *ModelsHandler {
	return &ModelsHandler{rec: rec, store: st, modelPath: modelPath}
}

type listModelsResponse struct {
	Models  []*store.Model `json:"models"`
	Current string         `json:"current,omitempty"`
}

type reloadResponse struct {
	Loaded  bool     `json:"loaded"`
	ModelID string   `json:"model_id,omitempty"`
	Path    string   `json:"path"`
	Labels  []string `json:"labels"`
}

type predictionsResponse struct {
	Recent []*store.Prediction `json:"recent"`
	Counts map[string]int      `json:"counts"`
}

func (h *ModelsHandler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Model registry not configured")
		return false
	}
	return true
}

// List handles GET /api/models.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	models, err := h.store.Models().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list models")
		return
	}
	for _, m := range models {
		m.Report = nil
	}
	if models == nil {
		models = []*store.Model{}
	}
	writeJSON(w, http.StatusOK, listModelsResponse{Models: models, Current: h.rec.ModelID()})
}

// Get handles GET /api/models/{id}.
func (h *ModelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	m, err := h.store.Models().GetByID(mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Model not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get model")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Reload handles POST /api/models/reload. The model file is loaded into a
// fresh classifier and swapped in, so in-flight predictions finish on the
// old one.
func (h *ModelsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	clf, err := classifier.Open(h.modelPath)
	var corrupt *classifier.CorruptModelError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "Model file not found")
		return
	case errors.As(err, &corrupt):
		monitoring.Logf("reload model: %v", err)
		writeError(w, http.StatusUnprocessableEntity, "Model file is corrupt")
		return
	case err != nil:
		monitoring.Logf("reload model: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load model")
		return
	}

	var id string
	if h.store != nil {
		if m, err := h.store.Models().Latest(h.modelPath); err == nil {
			id = m.ID
		}
	}
	h.rec.SwapModel(clf, id)
	monitoring.Logf("model reloaded from %s (%s)", h.modelPath, clf.Mapping())

	writeJSON(w, http.StatusOK, reloadResponse{
		Loaded:  true,
		ModelID: id,
		Path:    h.modelPath,
		Labels:  clf.Mapping().Names(),
	})
}

// Report handles GET /api/model/report: an HTML page with the stored
// evaluation of the serving model, or of the latest model for the file.
func (h *ModelsHandler) Report(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	m, err := h.reportModel()
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No evaluation recorded for the model")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get model")
		return
	}

	var ev classifier.Evaluation
	if err := json.Unmarshal(m.Report, &ev); err != nil {
		writeError(w, http.StatusInternalServerError, "Stored evaluation is unreadable")
		return
	}

	page := report.Page{Title: m.Path, Subtitle: m.CreatedAt.Format("2006-01-02 15:04"), Evaluation: &ev}
	if clf := h.rec.Classifier(); clf != nil && h.rec.ModelID() == m.ID {
		page.Importances, _ = clf.FeatureImportances()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, page); err != nil {
		monitoring.Logf("render report: %v", err)
	}
}

func (h *ModelsHandler) reportModel() (*store.Model, error) {
	var (
		m   *store.Model
		err error
	)
	if id := h.rec.ModelID(); id != "" {
		m, err = h.store.Models().GetByID(id)
	} else {
		m, err = h.store.Models().Latest(h.modelPath)
	}
	if err != nil {
		return nil, err
	}
	if len(m.Report) == 0 {
		return nil, store.ErrNotFound
	}
	return m, nil
}

// Predictions handles GET /api/predictions: the latest logged predictions
// and the all-time count per sign.
func (h *ModelsHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	recent, err := h.store.Predictions().Recent(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list predictions")
		return
	}
	counts, err := h.store.Predictions().CountBySign()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count predictions")
		return
	}
	if recent == nil {
		recent = []*store.Prediction{}
	}
	writeJSON(w, http.StatusOK, predictionsResponse{Recent: recent, Counts: counts})
}
