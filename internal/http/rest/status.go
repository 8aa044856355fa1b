package rest

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/italolelis/batchdl/internal/presenter"
	"github.com/italolelis/batchdl/internal/storage"
)

// StatusSource provides the latest batch progress.
type StatusSource interface {
	View() (presenter.StatusView, bool)
}

type TransferRecordView struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	Bytes       int64     `json:"bytes"`
	Message     string    `json:"message,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

type StatusHandler struct {
	status   StatusSource
	ledger   storage.TransferReadRepository
	metrics  http.Handler
	username string
	password string
}

// NewStatusHandler creates the status API. ledger may be nil when no database is
// configured. Basic auth is enforced only when username is set.
func NewStatusHandler(status StatusSource, ledger storage.TransferReadRepository, username, password string) *StatusHandler {
	return &StatusHandler{
		status:   status,
		ledger:   ledger,
		username: username,
		password: password,
	}
}

// WithMetrics serves m on /metrics, behind the same auth as the status routes.
func (h *StatusHandler) WithMetrics(m http.Handler) *StatusHandler {
	h.metrics = m

	return h
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)

	r.Group(func(r chi.Router) {
		if h.username != "" {
			r.Use(h.basicAuthMiddleware)
		}

		r.Get("/status", h.HandleStatus)
		r.Get("/batches/{batchID}/transfers", h.HandleTransfers)

		if h.metrics != nil {
			r.Handle("/metrics", h.metrics)
		}
	})

	return r
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleStatus returns the latest snapshot of the running (or last finished) batch.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	view, ok := h.status.View()
	if !ok {
		http.Error(w, "no batch has reported progress yet", http.StatusNotFound)

		return
	}

	writeJSON(w, r, view)
}

// HandleTransfers returns the recorded outcomes of a batch.
func (h *StatusHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	if h.ledger == nil {
		http.Error(w, "transfer ledger is disabled", http.StatusNotFound)

		return
	}

	batchID := chi.URLParam(r, "batchID")

	records, err := h.ledger.GetTransfers(r.Context(), batchID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to get transfers", "batch_id", batchID, "err", err)
		http.Error(w, "failed to get transfers", http.StatusInternalServerError)

		return
	}

	if len(records) == 0 {
		http.Error(w, "unknown batch "+batchID, http.StatusNotFound)

		return
	}

	views := make([]TransferRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, TransferRecordView{
			Source:      rec.Source,
			Destination: rec.Destination,
			Status:      rec.Status,
			Bytes:       rec.Bytes,
			Message:     rec.Message,
			FinishedAt:  rec.FinishedAt,
		})
	}

	writeJSON(w, r, views)
}

func (h *StatusHandler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)

			return
		}

		if subtle.ConstantTimeCompare([]byte(username), []byte(h.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(h.password)) != 1 {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to encode response", "err", err)
	}
}
