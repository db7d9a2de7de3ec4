package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest        ErrorCode = "bad_request"
	errCodeInvalidResource   ErrorCode = "invalid_resource"
	errCodePaymentNotFound   ErrorCode = "payment_not_found"
	errCodePaymentInvalid    ErrorCode = "payment_invalid"
	errCodeAuthorityMismatch ErrorCode = "authority_mismatch"
	errCodeMintInProgress    ErrorCode = "mint_in_progress"

	// Server errors (5xx)
	errCodeInternalError     ErrorCode = "internal_error"
	errCodeMisconfigured     ErrorCode = "server_misconfigured"
	errCodeMintIndeterminate ErrorCode = "mint_indeterminate"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, code ErrorCode, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, code, message, details...)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, code ErrorCode, message string) {
	logger.Error(err, zap.String("path", c.Request.URL.Path))
	respondWithError(c, http.StatusInternalServerError, code, message)
}
