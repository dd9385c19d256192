package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	"github.com/smallbiznis/hmsinsure/internal/authorization"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrConfirmRequired    = errors.New("confirmation_required")
)

// providerFailure is implemented by every error describing a failed call to
// an insurance provider.
type providerFailure interface {
	ProviderFailure() bool
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fromFieldErrors(fieldErrs),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var guardErr *claimdomain.GuardError
	if errors.As(err, &guardErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "claim_guard_failed",
			Message: guardErr.Error(),
		}
	}

	var pf providerFailure
	if errors.As(err, &pf) && pf.ProviderFailure() {
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: err.Error(),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    err.Error(),
			Message: strings.ReplaceAll(err.Error(), "_", " "),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code written to the request
// log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func fromFieldErrors(errs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Code:    fe.Tag(),
			Message: "invalid value",
		})
	}
	return out
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrConfirmRequired),
		errors.Is(err, claimdomain.ErrInvalidRequest),
		errors.Is(err, coveragedomain.ErrInvalidRequest),
		errors.Is(err, coveragedomain.ErrInvalidCompany),
		errors.Is(err, coveragedomain.ErrInvalidServiceType),
		errors.Is(err, deliverynotedomain.ErrInvalidRequest),
		errors.Is(err, pricepackagedomain.ErrInvalidCompany),
		errors.Is(err, itempricedomain.ErrInvalidCompany),
		errors.Is(err, providerdomain.ErrUnknownProvider),
		errors.Is(err, providerdomain.ErrInvalidCardNo),
		errors.Is(err, logdomain.ErrInvalidProvider),
		errors.Is(err, logdomain.ErrInvalidRequestType),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidRole),
		errors.Is(err, apikeydomain.ErrInvalidKeyID),
		errors.Is(err, syncjob.ErrInvalidArgs),
		errors.Is(err, jobqueue.ErrUnknownQueue),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, claimdomain.ErrClaimNotFound),
		errors.Is(err, claimdomain.ErrAppointmentNotFound),
		errors.Is(err, deliverynotedomain.ErrNoteNotFound),
		errors.Is(err, deliverynotedomain.ErrItemNotFound),
		errors.Is(err, coveragedomain.ErrPlanNotFound),
		errors.Is(err, itempricedomain.ErrPriceListMissing),
		errors.Is(err, logdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, jobqueue.ErrJobNotFound),
		errors.Is(err, providerdomain.ErrProviderNotSet),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, claimdomain.ErrClaimExists),
		errors.Is(err, claimdomain.ErrClaimSubmitted),
		errors.Is(err, claimdomain.ErrAppointmentExists),
		errors.Is(err, claimdomain.ErrInvalidTransition),
		errors.Is(err, deliverynotedomain.ErrNoteSubmitted),
		errors.Is(err, deliverynotedomain.ErrItemInStock),
		errors.Is(err, coveragedomain.ErrPlanExists),
		errors.Is(err, coveragedomain.ErrDuplicate):
		return true
	default:
		return false
	}
}

func isUnprocessableError(err error) bool {
	switch {
	case errors.Is(err, deliverynotedomain.ErrApprovalRequired),
		errors.Is(err, deliverynotedomain.ErrAllOutOfStock),
		errors.Is(err, coveragedomain.ErrNoActivePlan),
		errors.Is(err, providerdomain.ErrCardLookupUnsupported),
		errors.Is(err, itempricedomain.ErrMissingCurrency),
		errors.Is(err, pricepackagedomain.ErrEmptySnapshot):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, claimdomain.ErrInvalidRequest),
		errors.Is(err, coveragedomain.ErrInvalidRequest),
		errors.Is(err, deliverynotedomain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrConfirmRequired):
		return "confirmation_required"
	case errors.Is(err, syncjob.ErrInvalidArgs):
		return "invalid_job_arguments"
	case errors.Is(err, providerdomain.ErrUnknownProvider):
		return "invalid_provider"
	case errors.Is(err, jobqueue.ErrUnknownQueue):
		return "invalid_queue"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "confirmation_required":
		return "confirm"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "confirmation_required":
		return "this operation permanently deletes items and must be confirmed"
	default:
		return "invalid value"
	}
}
