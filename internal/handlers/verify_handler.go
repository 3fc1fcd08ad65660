package handlers

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticket-checkin/internal/services"
	"ticket-checkin/models"
)

type TicketVerifier interface {
	Verify(ctx context.Context, req services.VerifyRequest) (*models.VerificationOutcome, error)
}

type VerifyHandler struct {
	verifier TicketVerifier
}

func NewVerifyHandler(verifier TicketVerifier) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

// Verify - POST /api/v1/verify
//
// Every definitive outcome, including rejections, is a 200; the body says
// whether the holder may enter. Errors mean no decision was recorded and the
// scanner may retry.
func (h *VerifyHandler) Verify(e *core.RequestEvent) error {
	var req services.VerifyRequest
	if err := bindBody(e, &req); err != nil {
		return err
	}
	if req.ScannerID == "" && e.Auth != nil {
		req.ScannerID = e.Auth.Id
	}

	outcome, err := h.verifier.Verify(e.Request.Context(), req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, outcome)
}
