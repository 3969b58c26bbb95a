package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var allPermissions = []string{
	"collection.ingest",
	"collection.build",
	"collection.query",
	"index.repair",
}

// AuthMiddleware authenticates the request and resolves the caller's tenant.
// Two paths are accepted: a JWT signed by the configured identity provider
// carrying a "tenant" claim, or the master API key, which may act on any
// tenant via the X-Tenant-ID header.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.Split(authHeader, " ")[1]
		cc := c.(*AppContext)
		app := cc.App

		// Master API key bypass
		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			tenant := c.Request().Header.Get("X-Tenant-ID")
			if tenant == "" {
				tenant = app.MasterTenant
			}
			cc.Auth = &AuthInfo{
				Tenant:      tenant,
				Role:        "admin",
				Permissions: allPermissions,
			}
			return next(c)
		}

		k := *app.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		tenant, _ := claims["tenant"].(string)

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		var permissions []string
		if permsClaim, ok := claims["permissions"].([]any); ok {
			for _, p := range permsClaim {
				if pStr, ok := p.(string); ok {
					permissions = append(permissions, pStr)
				}
			}
		}

		if role == "admin" && len(permissions) == 0 {
			permissions = allPermissions
		}

		cc.Auth = &AuthInfo{
			Tenant:      tenant,
			Role:        role,
			Permissions: permissions,
		}

		return next(c)
	}
}
