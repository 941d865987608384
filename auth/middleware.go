package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inkpost/models"
)

const identityKey = "identity"

// Identity is the authenticated caller for the current request. It is set
// by RequireAuth and read back with CurrentUser; nothing global.
type Identity struct {
	UserID   uint
	Username string
	Roles    []string
}

func (i Identity) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range i.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// RequireAuth is the authentication gate. It extracts the bearer token,
// validates it and resolves the account, then attaches the identity to the
// request context. Any failure short-circuits with the fixed 401 body.
func (a *AuthModule) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		unauthenticated(c)
		return
	}

	username, err := a.tokens.Validate(token)
	if err != nil {
		a.log.Warn(c.Request.Context(), "token rejected", "err", err)
		unauthenticated(c)
		return
	}

	var user models.User
	if err := a.db.Preload("Roles").Where("username = ?", username).First(&user).Error; err != nil {
		unauthenticated(c)
		return
	}

	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Name)
	}

	c.Set(identityKey, Identity{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    roles,
	})
	c.Next()
}

// RequireRoles guards a route group behind a role check. It must run after
// RequireAuth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentUser(c)
		if !ok || !ident.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":  false,
				"message": "You Don't have permission to access this resource",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity RequireAuth stored for this request.
func CurrentUser(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	ident, ok := v.(Identity)
	return ident, ok
}

func unauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  false,
		"message": "Invalid Credentials",
	})
}
