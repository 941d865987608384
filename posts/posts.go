package posts

import (
	"errors"
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

type PostModule struct {
	db      *gorm.DB
	uploads storage.Uploader
	log     logging.Logger
}

func NewPostModule(db *gorm.DB, uploads storage.Uploader, log logging.Logger) *PostModule {
	return &PostModule{
		db:      db,
		uploads: uploads,
		log:     log,
	}
}

func (p *PostModule) RegisterRoutes(router *gin.Engine, gate gin.HandlerFunc) {
	g := router.Group("/")
	g.Use(gate)
	{
		g.POST("/posts", p.addPost)
		g.GET("/posts", p.getAllPosts)
		g.GET("/posts-summary", p.getPostSummaries)
		g.GET("/posts/paginated", p.getPaginatedSummaries)
		g.GET("/posts/search", p.searchPosts)
		g.GET("/posts/user", p.getOwnPosts)
		g.GET("/posts/user/:username", p.getPostsByUsername)
		g.GET("/posts/topic/:topic_id", p.getPostsByTopic)
		g.GET("/posts/:post_id", p.getPostByID)
		g.PUT("/posts/:post_id", p.updatePost)
		g.DELETE("/posts/:post_id", p.deletePost)
		g.POST("/posts/like/:post_id", p.toggleLike)
		g.GET("/posts/likes/:post_id", p.getPostLikes)
		g.POST("/posts/bookmarks/:post_id", p.toggleBookmark)
		g.GET("/posts/bookmarks/:post_id", p.getPostBookmarks)
		g.GET("/posts/bookmarks/user/:user_id", p.getBookmarkedPosts)
	}
}

// addPost creates a post from a multipart form: title, content, repeated
// topics fields and an optional image. Topics are deduplicated by name, the
// image goes to object storage and its URL is stored on the post.
func (p *PostModule) addPost(c *gin.Context) {
	ident, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Invalid Credentials"})
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	content := strings.TrimSpace(c.PostForm("content"))

	errs := make(map[string]string)
	if title == "" {
		errs["title"] = "Title can not be blank"
	}
	if content == "" {
		errs["content"] = "Content can not be blank"
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "errors": errs})
		return
	}

	post := models.Post{
		UserID:  ident.UserID,
		Title:   title,
		Content: content,
	}

	topics, err := p.resolveTopics(c.PostFormArray("topics"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Post not saved"})
		return
	}
	post.Topics = topics

	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader.Size > 0 {
		url, err := p.uploadImage(c, storage.PostImageKey(ident.Username, fileHeader.Filename), fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Image upload failed"})
			return
		}
		post.ImgURL = url
	}

	if err := p.db.Create(&post).Error; err != nil {
		p.log.Error(c.Request.Context(), "post create failed", "user", ident.Username, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Post not saved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   true,
		"result":   post,
		"username": ident.Username,
	})
}

// resolveTopics maps topic names to existing rows, creating any that do not
// exist yet. Names are deduplicated case-sensitively, matching the unique
// index on topics.name.
func (p *PostModule) resolveTopics(names []string) ([]models.Topic, error) {
	seen := make(map[string]bool)
	var topics []models.Topic
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		topic := models.Topic{Name: name}
		if err := p.db.Where("name = ?", name).FirstOrCreate(&topic).Error; err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func (p *PostModule) uploadImage(c *gin.Context, key string, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	return p.uploads.Upload(c.Request.Context(), key, contentType, file, fileHeader.Size)
}

func (p *PostModule) getAllPosts(c *gin.Context) {
	var allPosts []models.Post
	if err := p.db.Preload("Topics").Order("created_at DESC").Find(&allPosts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": allPosts})
}

func (p *PostModule) getPostSummaries(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	summaries, err := p.allSummaries(ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": summaries})
}

// getPaginatedSummaries serves zero-indexed pages: ?page=0 is the first one.
func (p *PostModule) getPaginatedSummaries(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "5"))
	if err != nil || size <= 0 {
		size = 5
	}

	summaries, total, err := p.paginatedSummaries(ident.UserID, page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	c.JSON(http.StatusOK, gin.H{
		"status":      true,
		"result":      summaries,
		"currentPage": page,
		"totalItems":  total,
		"totalPages":  totalPages,
		"hasNext":     page+1 < totalPages,
	})
}

// searchPosts filters the requester's own summaries by a case-insensitive
// title substring. No match is an empty result, not an error.
func (p *PostModule) searchPosts(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	term := strings.ToLower(c.Query("searchTerm"))

	summaries, err := p.summariesByUserID(ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}

	filtered := make([]PostSummary, 0)
	for _, summary := range summaries {
		if strings.Contains(strings.ToLower(summary.Title), term) {
			filtered = append(filtered, summary)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": filtered})
}

func (p *PostModule) getOwnPosts(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	summaries, err := p.summariesByUserID(ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": summaries})
}

func (p *PostModule) getPostsByUsername(c *gin.Context) {
	summaries, err := p.summariesByUsername(c.Param("username"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": summaries})
}

func (p *PostModule) getPostsByTopic(c *gin.Context) {
	topicID, ok := parseID(c, "topic_id")
	if !ok {
		return
	}
	summaries, err := p.summariesByTopicID(topicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": summaries})
}

func (p *PostModule) getPostByID(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	post, err := p.singlePost(postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Post not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": post})
}

func (p *PostModule) updatePost(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Post not found"})
		return
	}

	if post.UserID != ident.UserID {
		c.JSON(http.StatusForbidden, gin.H{"status": false, "message": "You are not authorized to update this post"})
		return
	}

	if title := strings.TrimSpace(c.PostForm("title")); title != "" {
		post.Title = title
	}
	if content := strings.TrimSpace(c.PostForm("content")); content != "" {
		post.Content = content
	}

	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader.Size > 0 {
		url, err := p.uploadImage(c, storage.PostImageKey(ident.Username, fileHeader.Filename), fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Image upload failed"})
			return
		}
		post.ImgURL = url
	}

	if err := p.db.Save(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Post not saved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "result": post})
}

// deletePost removes a post and its dependent rows. Only the owner may do
// this; anyone else gets a 403 and the row stays put.
func (p *PostModule) deletePost(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Post not found"})
		return
	}

	if post.UserID != ident.UserID {
		c.JSON(http.StatusForbidden, gin.H{"status": false, "message": "You are not authorized to delete this post"})
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&post).Association("Topics").Clear(); err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		p.log.Error(c.Request.Context(), "post delete failed", "post", post.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error deleting post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Post deleted successfully"})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	raw := c.Param(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}
