package comments

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkpost/auth"
	"inkpost/common"
	"inkpost/models"
)

type CommentModule struct {
	db *gorm.DB
}

func NewCommentModule(db *gorm.DB) *CommentModule {
	return &CommentModule{db: db}
}

func (m *CommentModule) RegisterRoutes(router *gin.Engine, gate gin.HandlerFunc) {
	g := router.Group("/")
	g.Use(gate)
	{
		g.POST("/comments/:post_id", m.addComment)
		g.GET("/posts/comments/:post_id", m.getComments)
	}
}

type commentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

// commentPayload is the read projection: comment text plus the commenter's
// username and avatar.
type commentPayload struct {
	Comment  string `json:"comment"`
	ImgURL   string `json:"imgUrl"`
	Username string `json:"username"`
}

// addComment appends a comment to a post. Comments are append-only; there
// is no update or delete route.
func (m *CommentModule) addComment(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)

	postID, err := strconv.ParseUint(c.Param("post_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid id"})
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "errors": common.FieldErrors(err)})
		return
	}

	var post models.Post
	if err := m.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Post not found"})
		return
	}

	comment := models.Comment{
		PostID:  post.ID,
		UserID:  ident.UserID,
		Comment: req.Comment,
	}
	if err := m.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Comment not saved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "comment": comment})
}

func (m *CommentModule) getComments(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Param("post_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid id"})
		return
	}

	var post models.Post
	if err := m.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Post not found"})
		return
	}

	payload := make([]commentPayload, 0)
	err = m.db.Raw(`
SELECT c.comment AS comment,
       COALESCE(pr.img_url, '') AS img_url,
       u.username AS username
FROM comments c
JOIN users u ON u.id = c.user_id
LEFT JOIN profiles pr ON pr.user_id = c.user_id
WHERE c.post_id = ?
ORDER BY c.created_at`, postID).
		Scan(&payload).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "comments": payload})
}
