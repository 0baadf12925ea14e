package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/platformeng/demo-user-service/internal/database"
	errs "github.com/platformeng/demo-user-service/internal/errors"
)

// errorResponse is the wire format for failed requests.
type errorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// Translate maps an error to an HTTP status and response body. Domain errors
// keep their own status and message. Database errors are collapsed into a
// generic message so driver detail never reaches the client. Anything
// unrecognized becomes a 500.
//
// Domain errors are checked before database errors: the session manager tags
// every failure that crosses it, so a not-found raised inside a transaction
// arrives here wrapped in a database error and must win on unwrap.
func Translate(err error) (int, errorResponse) {
	var svcErr *errs.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus, errorResponse{
			Success: false,
			Error:   svcErr.Message,
			Details: svcErr.Details,
		}
	}

	var dbErr *database.Error
	if errors.As(err, &dbErr) {
		switch dbErr.Kind {
		case database.KindIntegrity:
			return http.StatusConflict, errorResponse{
				Success: false,
				Error:   "Resource already exists",
			}
		default:
			return http.StatusInternalServerError, errorResponse{
				Success: false,
				Error:   "Database error",
			}
		}
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusUnprocessableEntity, errorResponse{
			Success: false,
			Error:   "Validation error",
			Details: validationDetails(fieldErrs),
		}
	}

	return http.StatusInternalServerError, errorResponse{
		Success: false,
		Error:   "Internal server error",
	}
}
