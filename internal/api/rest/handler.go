package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SkeletronCoreSkulls/apes2/internal/checkout"
	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/x402"
)

// ConfirmRequest is the POST body on the payment endpoint. TxHash is the
// payment proof; Payer triggers discovery when TxHash is absent.
type ConfirmRequest struct {
	Resource string `json:"resource"`
	TxHash   string `json:"txHash"`
	Payer    string `json:"payer"`
}

// ConfirmResponse is the success body on the payment endpoint
type ConfirmResponse struct {
	OK        bool   `json:"ok"`
	MintedTo  string `json:"mintedTo,omitempty"`
	NftTxHash string `json:"nftTxHash,omitempty"`
	Note      string `json:"note,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
}

// Handler serves the payment endpoint
type Handler struct {
	service  *checkout.Service
	document x402.PaymentRequired
	resource string
}

// NewHandler creates a REST handler
func NewHandler(service *checkout.Service, document x402.PaymentRequired, resource string) *Handler {
	return &Handler{
		service:  service,
		document: document,
		resource: resource,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetPaymentRequirements handles GET on the payment endpoint. The document
// body is the contract; it is served with 200 here (some deployments front
// the resource itself and serve the same body with 402).
func (h *Handler) GetPaymentRequirements(c *gin.Context) {
	c.JSON(http.StatusOK, h.document)
}

// ConfirmPayment handles POST on the payment endpoint
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errCodeBadRequest, "Invalid request body", err.Error())
		return
	}

	// The resource check runs before any chain access
	if req.Resource != h.resource {
		respondBadRequest(c, errCodeInvalidResource, "Unknown resource", req.Resource)
		return
	}
	if req.TxHash == "" && req.Payer == "" {
		respondBadRequest(c, errCodeBadRequest, "Either txHash or payer is required")
		return
	}

	result, err := h.service.Confirm(c.Request.Context(), checkout.ConfirmRequest{
		TxHash: req.TxHash,
		Payer:  req.Payer,
	})
	if err != nil {
		h.respondConfirmError(c, err)
		return
	}

	if result.AlreadyProcessed {
		c.JSON(http.StatusOK, ConfirmResponse{
			OK:     true,
			Note:   "Already processed",
			TxHash: result.TxHash,
		})
		return
	}

	c.JSON(http.StatusOK, ConfirmResponse{
		OK:        true,
		MintedTo:  result.MintedTo,
		NftTxHash: result.MintTxHash,
	})
}

// respondConfirmError maps pipeline failures onto the HTTP taxonomy:
// caller-correctable faults are 4xx, downstream/infra faults are 5xx, and
// the indeterminate-broadcast case keeps its own code so callers never
// mistake it for a retryable timeout.
func (h *Handler) respondConfirmError(c *gin.Context, err error) {
	var authority *domain.AuthorityMismatchError

	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		respondWithError(c, http.StatusNotFound, errCodePaymentNotFound,
			"Payment transaction not found; it may not be finalized yet", err.Error())
	case errors.Is(err, domain.ErrTransactionFailed),
		errors.Is(err, domain.ErrNoQualifyingTransfer),
		errors.Is(err, domain.ErrInsufficientAmount),
		errors.Is(err, domain.ErrNoRecentPayment):
		respondBadRequest(c, errCodePaymentInvalid, "Payment verification failed", err.Error())
	case errors.As(err, &authority):
		respondBadRequest(c, errCodeAuthorityMismatch, "Mint authority misconfigured", authority.Error())
	case errors.Is(err, domain.ErrMintInProgress):
		respondWithError(c, http.StatusConflict, errCodeMintInProgress,
			"A mint for this payment is already in progress", err.Error())
	case errors.Is(err, domain.ErrMintIndeterminate):
		respondInternalError(c, err, errCodeMintIndeterminate,
			"Mint was broadcast but its outcome is unknown; do not retry until it resolves")
	case errors.Is(err, domain.ErrServerMisconfigured):
		respondInternalError(c, err, errCodeMisconfigured, "Server misconfigured")
	default:
		respondInternalError(c, err, errCodeInternalError, "Failed to process payment")
	}
}
