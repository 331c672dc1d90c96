package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mastercom/internal/records/models"
	"mastercom/internal/records/service"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	"mastercom/pkg/platform/httputil"
	"mastercom/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/records-mocks.go -package=mocks Service

// Service defines the interface for record operations.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*models.Record, error)
	Get(ctx context.Context, table models.Table, recordID id.RecordID) (*models.Record, error)
	List(ctx context.Context, table models.Table) ([]*models.Record, error)
	Update(ctx context.Context, cmd service.UpdateCommand) (*models.Record, error)
}

// Handler serves the CRUD screens. There is intentionally no DELETE route.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts record endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/records/{table}", h.HandleList)
	r.Post("/records/{table}", h.HandleCreate)
	r.Get("/records/{table}/{id}", h.HandleGet)
	r.Patch("/records/{table}/{id}", h.HandleUpdate)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table, err := models.ParseTable(chi.URLParam(r, "table"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recs, err := h.service.List(ctx, table)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list records",
			"request_id", requestcontext.RequestID(ctx),
			"table", table,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Table: table, Records: recs})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	table, err := models.ParseTable(chi.URLParam(r, "table"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.Create(ctx, service.CreateCommand{
		Table: table,
		ID:    req.ParsedID(),
		Data:  req.Data,
		Actor: userID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create record",
			"request_id", requestID,
			"table", table,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table, recordID, err := parsePath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Get(ctx, table, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	table, recordID, err := parsePath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.Update(ctx, service.UpdateCommand{
		Table: table,
		ID:    recordID,
		Patch: req.Data,
		Actor: userID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update record",
			"request_id", requestID,
			"table", table,
			"record_id", recordID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func parsePath(r *http.Request) (models.Table, id.RecordID, error) {
	table, err := models.ParseTable(chi.URLParam(r, "table"))
	if err != nil {
		return "", "", err
	}
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		return "", "", err
	}
	return table, recordID, nil
}
