package profiles

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkpost/auth"
	"inkpost/logging"
	"inkpost/models"
	"inkpost/storage"
)

type ProfileModule struct {
	db      *gorm.DB
	uploads storage.Uploader
	log     logging.Logger
}

func NewProfileModule(db *gorm.DB, uploads storage.Uploader, log logging.Logger) *ProfileModule {
	return &ProfileModule{
		db:      db,
		uploads: uploads,
		log:     log,
	}
}

func (m *ProfileModule) RegisterRoutes(router *gin.Engine, gate gin.HandlerFunc) {
	g := router.Group("/")
	g.Use(gate)
	{
		g.POST("/profile", m.setProfile)
		g.GET("/profile", m.getOwnProfile)
		g.GET("/profile/search", m.searchProfiles)
		g.GET("/profile/:username", m.getProfileByUsername)
		g.POST("/profile/soft-delete", m.softDeleteUser)
		g.PUT("/update-profile/:profile_id", m.updateProfile)

		// user listings are admin-only
		admin := g.Group("/", auth.RequireRoles(models.RoleAdmin))
		admin.GET("/profile/active", m.getActiveUsers)
		admin.GET("/profile/inactive", m.getInactiveUsers)
	}
}

// ProfileSummary is the joined user+profile projection used by the profile
// reads and the search endpoint.
type ProfileSummary struct {
	UserID      uint   `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	ImgURL      string `json:"imgUrl"`
}

// setProfile creates or replaces the current user's profile from a
// multipart form: displayName, bio, optional file for the avatar.
func (m *ProfileModule) setProfile(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)

	profile := models.Profile{UserID: ident.UserID}
	if err := m.db.Where("user_id = ?", ident.UserID).First(&profile).Error; err != nil {
		profile = models.Profile{UserID: ident.UserID}
	}

	profile.DisplayName = c.PostForm("displayName")
	profile.Bio = c.PostForm("bio")

	if fileHeader, err := c.FormFile("file"); err == nil && fileHeader.Size > 0 {
		url, err := m.uploadAvatar(c, ident.Username, fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Image upload failed"})
			return
		}
		profile.ImgURL = url
	}

	if err := m.db.Save(&profile).Error; err != nil {
		m.log.Error(c.Request.Context(), "profile save failed", "user", ident.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Profile not saved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   true,
		"result":   profile,
		"username": ident.Username,
	})
}

func (m *ProfileModule) uploadAvatar(c *gin.Context, username string, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	return m.uploads.Upload(c.Request.Context(), storage.ProfileImageKey(username, fileHeader.Filename), contentType, file, fileHeader.Size)
}

func (m *ProfileModule) getOwnProfile(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	m.respondProfile(c, ident.UserID)
}

func (m *ProfileModule) getProfileByUsername(c *gin.Context) {
	var user models.User
	if err := m.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "User not found"})
		return
	}
	m.respondProfile(c, user.ID)
}

func (m *ProfileModule) respondProfile(c *gin.Context, userID uint) {
	var summary ProfileSummary
	res := m.db.Raw(`
SELECT u.id AS user_id,
       u.username AS username,
       COALESCE(pr.display_name, '') AS display_name,
       COALESCE(pr.bio, '') AS bio,
       COALESCE(pr.img_url, '') AS img_url
FROM users u
JOIN profiles pr ON pr.user_id = u.id
WHERE u.id = ?`, userID).
		Scan(&summary)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading profile"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": summary})
}

// updateProfile partially updates a profile by id. Only the owner may do
// this.
func (m *ProfileModule) updateProfile(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)

	profileID, err := strconv.ParseUint(c.Param("profile_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid id"})
		return
	}

	var profile models.Profile
	if err := m.db.First(&profile, profileID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Profile not found"})
		return
	}

	if profile.UserID != ident.UserID {
		c.JSON(http.StatusForbidden, gin.H{"status": false, "message": "You are not authorized to update this profile"})
		return
	}

	if displayName := strings.TrimSpace(c.PostForm("displayName")); displayName != "" {
		profile.DisplayName = displayName
	}
	if bio := strings.TrimSpace(c.PostForm("bio")); bio != "" {
		profile.Bio = bio
	}

	if fileHeader, err := c.FormFile("file"); err == nil && fileHeader.Size > 0 {
		url, err := m.uploadAvatar(c, ident.Username, fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Image upload failed"})
			return
		}
		profile.ImgURL = url
	}

	if err := m.db.Save(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Profile not saved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": profile})
}

// softDeleteUser marks the current account deleted; the row itself stays.
func (m *ProfileModule) softDeleteUser(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)

	var user models.User
	if err := m.db.First(&user, ident.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "User not found"})
		return
	}

	user.IsDeleted = true
	if err := m.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error deleting account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": user})
}

func (m *ProfileModule) getActiveUsers(c *gin.Context) {
	m.respondUsersByFlag(c, false)
}

func (m *ProfileModule) getInactiveUsers(c *gin.Context) {
	m.respondUsersByFlag(c, true)
}

func (m *ProfileModule) respondUsersByFlag(c *gin.Context, deleted bool) {
	users := make([]models.User, 0)
	if err := m.db.Where("is_deleted = ?", deleted).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": users})
}

// searchProfiles runs a database-level case-insensitive LIKE over username
// and display name. An empty term returns every profile.
func (m *ProfileModule) searchProfiles(c *gin.Context) {
	term := strings.TrimSpace(c.Query("searchTerm"))

	query := `
SELECT u.id AS user_id,
       u.username AS username,
       COALESCE(pr.display_name, '') AS display_name,
       COALESCE(pr.bio, '') AS bio,
       COALESCE(pr.img_url, '') AS img_url
FROM users u
JOIN profiles pr ON pr.user_id = u.id`

	summaries := make([]ProfileSummary, 0)
	var err error
	if term == "" {
		err = m.db.Raw(query).Scan(&summaries).Error
	} else {
		pattern := "%" + strings.ToLower(term) + "%"
		err = m.db.Raw(query+`
WHERE LOWER(u.username) LIKE ? OR LOWER(pr.display_name) LIKE ?`, pattern, pattern).
			Scan(&summaries).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error searching profiles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": summaries})
}
