package httpx

import (
	"net/http"

	"github.com/tradyx/backoffice/internal/shared"
)

// StatusFor maps an error classification to an HTTP status code.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindInsufficientStock:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindForbiddenSelf, shared.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the classified failure as a result envelope.
func RespondError(w http.ResponseWriter, err error) {
	res := shared.ResultOf(err)
	JSON(w, StatusFor(res.Kind), res)
}

// RespondResult writes a success result with the given status.
func RespondResult(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, shared.OK(message, data))
}
