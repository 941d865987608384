package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"inkpost/logging"
	"inkpost/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(
		&models.User{}, &models.Role{}, &models.Profile{}, &models.Post{},
		&models.Comment{}, &models.Topic{}, &models.Like{}, &models.Bookmark{},
	)
	for _, name := range []string{models.RoleAdmin, models.RoleUser} {
		db.Create(&models.Role{Name: name})
	}
	return db
}

func setupAuth(db *gorm.DB) (*gin.Engine, *AuthModule) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	tokens := NewTokenService([]byte("test-secret"), time.Hour)
	module := NewAuthModule(db, tokens, logging.NewDefault())
	module.RegisterRoutes(router)
	return router, module
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	w := postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["status"])

	var alice models.User
	assert.NoError(t, db.Preload("Roles").Where("username = ?", "alice").First(&alice).Error)
	assert.Len(t, alice.Roles, 1)
	assert.Equal(t, models.RoleAdmin, alice.Roles[0].Name)

	w = postJSON(router, "/auth/register", gin.H{"username": "bob", "password": "secret2"})
	assert.Equal(t, http.StatusOK, w.Code)

	var bob models.User
	assert.NoError(t, db.Preload("Roles").Where("username = ?", "bob").First(&bob).Error)
	assert.Len(t, bob.Roles, 1)
	assert.Equal(t, models.RoleUser, bob.Roles[0].Name)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	w := postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "other99"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["status"])
	assert.Equal(t, "Username is already in use", body["message"])

	// the losing insert must not leave a second row behind
	var count int64
	db.Model(&models.User{}).Where("username = ?", "alice").Count(&count)
	assert.Equal(t, int64(1), count)
}

// A row created outside the register handler still trips the unique index,
// which is what two racing registrations reduce to.
func TestRegister_DuplicateOfExistingRow(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	db.Create(&models.User{Username: "alice", PasswordHash: "x"})

	w := postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username is already in use", decode(t, w)["message"])
}

func TestRegister_ValidationErrors(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	w := postJSON(router, "/auth/register", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["status"])
	errs, ok := body["errors"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, errs, "password")
}

func TestRegister_PasswordNeverSerialized(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	w := postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	assert.NotContains(t, w.Body.String(), "secret1")
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestLogin_Success(t *testing.T) {
	db := setupTestDB()
	router, module := setupAuth(db)

	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	w := postJSON(router, "/auth/login", gin.H{"username": "alice", "password": "secret1"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["status"])

	token, ok := body["token"].(string)
	assert.True(t, ok)

	subject, err := module.tokens.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestLogin_WrongPassword(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	w := postJSON(router, "/auth/login", gin.H{"username": "alice", "password": "wrongpass"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["status"])
	assert.Equal(t, "Invalid Credentials", body["message"])
}

func TestLogin_UnknownUser(t *testing.T) {
	db := setupTestDB()
	router, _ := setupAuth(db)

	w := postJSON(router, "/auth/login", gin.H{"username": "nobody", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func protectedRouter(db *gorm.DB, module *AuthModule) *gin.Engine {
	router := gin.New()
	module.RegisterRoutes(router)
	router.GET("/whoami", module.RequireAuth, func(c *gin.Context) {
		ident, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"username": ident.Username, "roles": ident.Roles})
	})
	router.GET("/admin-only", module.RequireAuth, RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestGate_MissingToken(t *testing.T) {
	db := setupTestDB()
	_, module := setupAuth(db)
	router := protectedRouter(db, module)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"status":false,"message":"Invalid Credentials"}`, w.Body.String())
}

func TestGate_MalformedToken(t *testing.T) {
	db := setupTestDB()
	_, module := setupAuth(db)
	router := protectedRouter(db, module)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGate_ExpiredToken(t *testing.T) {
	db := setupTestDB()
	_, module := setupAuth(db)
	router := protectedRouter(db, module)

	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})

	expired := NewTokenService([]byte("test-secret"), -1*time.Second)
	token, _ := expired.Issue("alice")

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGate_ValidToken(t *testing.T) {
	db := setupTestDB()
	_, module := setupAuth(db)
	router := protectedRouter(db, module)

	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	token, _ := module.tokens.Issue("alice")

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}

func TestRequireRoles_Forbidden(t *testing.T) {
	db := setupTestDB()
	_, module := setupAuth(db)
	router := protectedRouter(db, module)

	// second registration only gets ROLE_USER
	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	postJSON(router, "/auth/register", gin.H{"username": "bob", "password": "secret2"})
	token, _ := module.tokens.Issue("bob")

	req, _ := http.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"status":false,"message":"You Don't have permission to access this resource"}`, w.Body.String())
}

func TestRequireRoles_AdminAllowed(t *testing.T) {
	db := setupTestDB()
	_, module := setupAuth(db)
	router := protectedRouter(db, module)

	postJSON(router, "/auth/register", gin.H{"username": "alice", "password": "secret1"})
	token, _ := module.tokens.Issue("alice")

	req, _ := http.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
