package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/orgsync/directory-sync/internal/domain"
	apperrors "github.com/orgsync/directory-sync/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated operator.
type Principal struct {
	SubjectID string
	Role      domain.Role
}

// AuthMiddleware validates bearer tokens. Operators are not stored locally,
// so the signed claims are the whole principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.SubjectID == "" || claims.Role == "" {
		return apperrors.NewUnauthorized("incomplete token claims")
	}

	c.Locals(principalKey, &Principal{SubjectID: claims.SubjectID, Role: claims.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
