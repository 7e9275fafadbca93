package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"emergency-service/helper"
	"emergency-service/pkg/constants"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Secured validates the bearer token and stores it in the request context.
func Secured() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			helper.SendError(c, http.StatusUnauthorized, fmt.Errorf("missing bearer token"), helper.ErrUnauthorized)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil || !token.Valid {
			helper.SendError(c, http.StatusUnauthorized, fmt.Errorf("invalid token"), helper.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(constants.Token, tokenString)

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if sub, ok := claims["sub"].(string); ok {
				c.Set("user_id", sub)
			}
		}

		c.Next()
	}
}
