package global

import (
	"net/http"

	"RPChat/tools/errs"
)

// Msg is the JSON envelope of every HTTP API response.
type Msg struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{Code: "ok", Data: data}
}

// Fail maps err to an HTTP status and an error envelope.
func Fail(err error) (int, *Msg) {
	ce := errs.AsCode(err)
	return httpStatus(ce.Code), &Msg{Code: ce.WireCode(), Msg: ce.Message()}
}

func httpStatus(code int) int {
	switch code {
	case errs.ProtocolError:
		return http.StatusBadRequest
	case errs.UnauthorizedError:
		return http.StatusUnauthorized
	case errs.NotFoundError:
		return http.StatusNotFound
	case errs.DeadCharacterError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
