package http

import (
	"github.com/gin-gonic/gin"

	"streamtube/internal/apperrors"
)

// apiResponse is the envelope returned by every successful operation.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// apiErrorResponse is the envelope returned for every failure.
type apiErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	c.JSON(status, apiErrorResponse{
		StatusCode: status,
		Message:    apperrors.Message(err),
		Success:    false,
		Errors:     []string{},
	})
}
