package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeEmptyDocument        = 40001
	CodeNoTextExtracted      = 40002
	CodeUnsupportedMediaType = 40003
	CodeEmptyQuery           = 40004
	CodeLLMNotConfigured     = 40005
	CodeUnauthorized         = 40100
	CodeForbidden            = 40300
	CodeJobNotFound          = 40401
	CodeInternalServer       = 50000
	CodePersistence          = 50001
	CodeEmbeddingUnavailable = 50201
	CodeEmbeddingMalformed   = 50202
	CodeUpstreamUnavailable  = 50203
	CodeServiceUnavailable   = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
