package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/runestake/settlement/errors"
)

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	TxID    string `json:"txid,omitempty"`
}

// statusOf maps an error category to the HTTP status returned to clients.
func statusOf(code errors.ERR) int {
	switch code.Category() {
	case errors.CategoryLiquidity:
		return http.StatusConflict
	case errors.CategoryProtocol:
		return http.StatusUnprocessableEntity
	case errors.CategoryCoordination:
		return http.StatusGone
	case errors.CategoryBroadcast:
		return http.StatusBadGateway
	case errors.CategoryInput:
		if code == errors.ERR_NOT_FOUND {
			return http.StatusNotFound
		}

		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sendError writes err as {message, code}. Only the outermost message is
// returned, internal errors are reported without details.
func sendError(c echo.Context, err error) error {
	var tErr *errors.Error
	if !errors.As(err, &tErr) {
		tErr = errors.New(errors.ERR_UNKNOWN, "internal error", err)
	}

	status := statusOf(tErr.Code())

	resp := &errorResponse{
		Message: tErr.Message(),
		Code:    tErr.Code().String(),
	}

	var broadcast *errors.BroadcastErrData
	if errors.AsData(tErr, &broadcast) {
		resp.Code = string(broadcast.Code)
		resp.TxID = broadcast.TxID
	}

	if status == http.StatusInternalServerError {
		resp.Message = "internal error"
	}

	prometheusAPIErrors.WithLabelValues(resp.Code).Inc()

	return c.JSON(status, resp)
}
