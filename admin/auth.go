package admin

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

type CustomClaims struct {
	UserID int `json:"user_id"`
	jwt.StandardClaims
}

// Auth guards the admin surface with a JWT bearer token signed by the
// configured secret.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		authorization := c.GetHeader("Authorization")
		if authorization != "" {
			tokenList := strings.Split(authorization, " ")
			if len(tokenList) == 2 {
				token = tokenList[1]
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, BaseResponse{ErrMsg: "missing bearer token"})
			return
		}

		t, err := jwt.ParseWithClaims(token, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !t.Valid {
			if err != nil {
				logger.WithError(err).Debug("admin token rejected")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, BaseResponse{ErrMsg: "invalid token"})
			return
		}
		if claims, ok := t.Claims.(*CustomClaims); ok {
			c.Set("user_id", claims.UserID)
		}
		c.Next()
	}
}
