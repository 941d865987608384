package comments

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

	"inkpost/auth"
	"inkpost/logging"
	"inkpost/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
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

func setupRouter(db *gorm.DB) (*gin.Engine, *auth.TokenService) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	authModule := auth.NewAuthModule(db, tokens, logging.NewDefault())

	module := NewCommentModule(db)
	module.RegisterRoutes(router, authModule.RequireAuth)
	return router, tokens
}

func createTestUser(db *gorm.DB, username string) *models.User {
	var role models.Role
	db.Where("name = ?", models.RoleUser).First(&role)

	user := &models.User{
		Username:     username,
		PasswordHash: "hashedpassword",
		Roles:        []models.Role{role},
	}
	db.Create(user)
	return user
}

func authedJSON(tokens *auth.TokenService, username, method, path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	token, _ := tokens.Issue(username)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAddComment_Success(t *testing.T) {
	db := setupTestDB()
	router, tokens := setupRouter(db)
	alice := createTestUser(db, "alice")
	db.Create(&models.Post{UserID: alice.ID, Title: "Hello", Content: "World"})

	req := authedJSON(tokens, "alice", "POST", "/comments/1", gin.H{"comment": "first"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["status"])

	var count int64
	db.Model(&models.Comment{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAddComment_MissingBody(t *testing.T) {
	db := setupTestDB()
	router, tokens := setupRouter(db)
	alice := createTestUser(db, "alice")
	db.Create(&models.Post{UserID: alice.ID, Title: "Hello", Content: "World"})

	req := authedJSON(tokens, "alice", "POST", "/comments/1", gin.H{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["status"])
	assert.Contains(t, resp, "errors")
}

func TestAddComment_UnknownPost(t *testing.T) {
	db := setupTestDB()
	router, tokens := setupRouter(db)
	createTestUser(db, "alice")

	req := authedJSON(tokens, "alice", "POST", "/comments/42", gin.H{"comment": "ghost"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetComments_OrderedWithAuthorInfo(t *testing.T) {
	db := setupTestDB()
	router, tokens := setupRouter(db)
	alice := createTestUser(db, "alice")
	bob := createTestUser(db, "bob")
	db.Create(&models.Profile{UserID: bob.ID, ImgURL: "https://cdn.test/bob.png"})
	post := &models.Post{UserID: alice.ID, Title: "Hello", Content: "World"}
	db.Create(post)

	db.Create(&models.Comment{PostID: post.ID, UserID: bob.ID, Comment: "first", CreatedAt: time.Now().Add(-time.Minute)})
	db.Create(&models.Comment{PostID: post.ID, UserID: alice.ID, Comment: "second", CreatedAt: time.Now()})

	req := authedJSON(tokens, "alice", "GET", "/posts/comments/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	listed := resp["comments"].([]any)
	assert.Len(t, listed, 2)

	first := listed[0].(map[string]any)
	assert.Equal(t, "first", first["comment"])
	assert.Equal(t, "bob", first["username"])
	assert.Equal(t, "https://cdn.test/bob.png", first["imgUrl"])

	// commenters without a profile get an empty avatar, not a null
	second := listed[1].(map[string]any)
	assert.Equal(t, "", second["imgUrl"])
}

func TestGetComments_UnknownPost(t *testing.T) {
	db := setupTestDB()
	router, tokens := setupRouter(db)
	createTestUser(db, "alice")

	req := authedJSON(tokens, "alice", "GET", "/posts/comments/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
