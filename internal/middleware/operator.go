package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// OperatorHeader carries the operator key.
const OperatorHeader = "X-Operator-Key"

// KeyChecker verifies an operator key.
type KeyChecker interface {
	CheckOperatorKey(key string) error
}

// RequireOperatorKey guards operator endpoints with the bcrypt-hashed key.
func RequireOperatorKey(checker KeyChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checker.CheckOperatorKey(c.GetHeader(OperatorHeader)); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrOperatorKeyInvalid)
			return
		}
		c.Next()
	}
}
