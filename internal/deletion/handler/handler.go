package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mastercom/internal/deletion/models"
	"mastercom/internal/deletion/service"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	"mastercom/pkg/platform/httputil"
	"mastercom/pkg/platform/middleware/auth"
	"mastercom/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/deletion-mocks.go -package=mocks Service

// Service defines the interface for the deletion workflow.
type Service interface {
	RequestDeletion(ctx context.Context, cmd service.SubmitCommand) (*models.DeletionRequest, error)
	List(ctx context.Context) ([]*models.DeletionRequest, error)
	Examine(ctx context.Context, requestID id.DeletionRequestID) (*service.Examination, error)
	Approve(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID, notes string) (*service.ApproveResult, error)
	Reject(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID, notes string) (*models.DeletionRequest, error)
	Reconcile(ctx context.Context, actor id.UserID) ([]service.ReconcileResult, error)
}

const (
	msgSubmitFailed = "Erreur lors de la création de la demande de suppression"
	msgReviewFailed = "Erreur lors du traitement de la demande de suppression"
)

// Handler serves the request submission and approval console endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the deletion endpoints. Review actions require the
// reviewer role.
func (h *Handler) Register(r chi.Router) {
	r.Route("/deletion-requests", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleExamine)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(requestcontext.RoleReviewer, h.logger))
			r.Post("/reconcile", h.HandleReconcile)
			r.Post("/{id}/approve", h.HandleApprove)
			r.Post("/{id}/reject", h.HandleReject)
		})
	})
}

// RegisterAdmin mounts operator endpoints. The caller guards them.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/deletion-requests/reconcile", h.HandleReconcile)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.RequestDeletion(ctx, req.Command(userID))
	if err != nil {
		h.logger.WarnContext(ctx, "deletion request refused",
			"request_id", requestID,
			"table", req.TableName,
			"record_id", req.RecordID,
			"error", err,
		)
		writeFailure(w, err, msgSubmitFailed)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ActionResponse{
		Success: true,
		Message: service.MsgRequestSubmitted,
		Request: created,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reqs, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list deletion requests",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	reviewer := requestcontext.Role(ctx) == requestcontext.RoleReviewer
	views := make([]RequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, RequestView{DeletionRequest: req, Actions: actionsFor(req, reviewer)})
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Requests: views, Total: len(views)})
}

func (h *Handler) HandleExamine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseDeletionRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	exam, err := h.service.Examine(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reviewer := requestcontext.Role(ctx) == requestcontext.RoleReviewer
	httputil.WriteJSON(w, http.StatusOK, ExamineResponse{
		Request:          RequestView{DeletionRequest: exam.Request, Actions: actionsFor(exam.Request, reviewer)},
		LiveRecord:       exam.LiveRecord,
		RecordExists:     exam.RecordExists(),
		SnapshotDiverged: exam.SnapshotDiverged,
	})
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	target, notes, reviewerID, ok := h.prepareReview(w, r)
	if !ok {
		return
	}

	result, err := h.service.Approve(ctx, target, reviewerID, notes)
	if err != nil {
		h.logger.WarnContext(ctx, "approve failed",
			"request_id", requestID,
			"deletion_request_id", target,
			"error", err,
		)
		writeFailure(w, err, msgReviewFailed)
		return
	}

	resp := ActionResponse{
		Success: result.Outcome != service.OutcomeDeleteFailed,
		Message: result.Message(),
		Outcome: string(result.Outcome),
		Request: result.Request,
	}
	if !resp.Success {
		resp.Error = string(dErrors.CodeInternal)
		httputil.WriteJSON(w, http.StatusInternalServerError, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	target, notes, reviewerID, ok := h.prepareReview(w, r)
	if !ok {
		return
	}

	rejected, err := h.service.Reject(ctx, target, reviewerID, notes)
	if err != nil {
		h.logger.WarnContext(ctx, "reject failed",
			"request_id", requestID,
			"deletion_request_id", target,
			"error", err,
		)
		writeFailure(w, err, msgReviewFailed)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: service.MsgRejected,
		Request: rejected,
	})
}

func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results, err := h.service.Reconcile(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "reconcile failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReconcileResponse{Results: results, Total: len(results)})
}

func (h *Handler) prepareReview(w http.ResponseWriter, r *http.Request) (id.DeletionRequestID, string, id.UserID, bool) {
	ctx := r.Context()

	reviewerID := requestcontext.UserID(ctx)
	if reviewerID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.DeletionRequestID{}, "", id.UserID{}, false
	}
	target, err := id.ParseDeletionRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DeletionRequestID{}, "", id.UserID{}, false
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return id.DeletionRequestID{}, "", id.UserID{}, false
	}
	return target, req.ReviewNotes, reviewerID, true
}

// writeFailure renders a refused action in the ActionResponse shape. Internal
// errors get the generic message.
func writeFailure(w http.ResponseWriter, err error, internalMessage string) {
	code := dErrors.CodeOf(err)
	msg := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal || msg == "" {
		msg = internalMessage
	}
	httputil.WriteJSON(w, dErrors.ToHTTPStatus(code), ActionResponse{
		Success: false,
		Message: msg,
		Error:   string(code),
	})
}
