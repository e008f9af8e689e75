package serverutils

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JwtMiddleware guards the entity routes. It expects a bearer token signed
// with the shared HMAC secret and stashes the authenticated user id in
// ctx.Locals("user_id") for the controllers.
func JwtMiddleware(ctx *fiber.Ctx) error {
	header := ctx.Get(fiber.HeaderAuthorization)
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenStr == "" {
		return unauthorized(ctx, "Missing token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return unauthorized(ctx, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorized(ctx, "Invalid claims")
	}
	userId, ok := claims["user_id"].(string)
	if !ok || userId == "" {
		return unauthorized(ctx, "Invalid claims")
	}

	ctx.Locals("user_id", userId)
	return ctx.Next()
}

func unauthorized(ctx *fiber.Ctx, message string) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": message})
}
