package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeEmailExists        = 40002
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeForbidden          = 40300
	CodeNotFound           = 40400
	CodeSessionNotFound    = 40401
	CodeJobNotFound        = 40402
	CodeBackendNotFound    = 40403
	CodeWorkspaceNotFound  = 40404
	CodeProjectNotFound    = 40405
	CodeScoreNotFound      = 40406
	CodePlanNotFound       = 40407
	CodeUserNotFound       = 40408
	CodeConflict           = 40900
	CodeInvalidTransition  = 40901
	CodeBackendUnavailable = 40902
	CodePlanExists         = 40903
	CodeTooManyRequests    = 42900
	CodeInternalServer     = 50000
	CodeServiceUnavailable = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListData is the data payload of paged listings.
type ListData struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func List(c *gin.Context, items interface{}, total int64) {
	OK(c, ListData{Items: items, Total: total})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
