package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"inkpost/common"
	"inkpost/logging"
	"inkpost/models"
)

type AuthModule struct {
	db     *gorm.DB
	tokens *TokenService
	log    logging.Logger
}

func NewAuthModule(db *gorm.DB, tokens *TokenService, log logging.Logger) *AuthModule {
	return &AuthModule{
		db:     db,
		tokens: tokens,
		log:    log,
	}
}

// RegisterRoutes wires the two public routes. Everything else in the API
// sits behind RequireAuth.
func (a *AuthModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/auth/register", a.register)
	router.POST("/auth/login", a.login)
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

func (a *AuthModule) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": false,
			"errors": common.FieldErrors(err),
		})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  false,
			"message": "Error creating account",
		})
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: passwordHash,
	}

	// First account ever becomes the admin; role count is decided inside the
	// same transaction as the insert so two racing first registrations can't
	// both claim it.
	err = a.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}

		roleName := models.RoleUser
		if count == 0 {
			roleName = models.RoleAdmin
		}

		var role models.Role
		if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
			return err
		}

		user.Roles = []models.Role{role}
		return tx.Create(&user).Error
	})
	// the unique index on username is the authority on duplicates; two
	// concurrent registrations both reach Create and the loser gets the
	// constraint violation
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "Username is already in use",
		})
		return
	}
	if err != nil {
		a.log.Error(c.Request.Context(), "registration failed", "username", req.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  false,
			"message": "Error creating account",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"result": user,
	})
}

func (a *AuthModule) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": false,
			"errors": common.FieldErrors(err),
		})
		return
	}

	var user models.User
	if err := a.db.Preload("Roles").Where("username = ?", req.Username).First(&user).Error; err != nil {
		unauthenticated(c)
		return
	}

	if !checkPasswordHash(req.Password, user.PasswordHash) {
		unauthenticated(c)
		return
	}

	token, err := a.tokens.Issue(user.Username)
	if err != nil {
		a.log.Error(c.Request.Context(), "token issuance failed", "username", user.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  false,
			"message": "Error logging in",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"user":   user,
		"token":  token,
	})
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
