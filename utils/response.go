package utils

import (
	"errors"
	"net/http"
)

// Response is the envelope callers use when handing engine results to a transport.
type Response struct {
	IsSuccess    bool    `json:"is_success"`
	ErrorMessage *string `json:"error_message"`
	StatusCode   int     `json:"status_code"`
	Result       any     `json:"result"`
}

func NewResponse(result any, err error) Response {
	if err != nil {
		msg := err.Error()
		return Response{
			IsSuccess:    false,
			ErrorMessage: &msg,
			StatusCode:   StatusCodeFor(err),
		}
	}
	return Response{
		IsSuccess:  true,
		StatusCode: http.StatusOK,
		Result:     result,
	}
}

func StatusCodeFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientAvailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
