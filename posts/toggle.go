package posts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkpost/auth"
	"inkpost/models"
)

// The like and bookmark relations share the same toggle shape: presence of
// a (user, post) row means active, absence means inactive. Each toggle runs
// inside a transaction; the composite unique index is the backstop for two
// concurrent first-time toggles racing each other.

// ToggleLike flips the like state for the pair and reports whether the like
// is now active.
func (p *PostModule) ToggleLike(userID, postID uint) (bool, error) {
	var active bool
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var like models.Like
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&like)
		if res.Error == nil {
			active = false
			return tx.Delete(&like).Error
		}
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}
		active = true
		return tx.Create(&models.Like{UserID: userID, PostID: postID}).Error
	})
	return active, err
}

// ToggleBookmark flips the bookmark state for the pair and reports whether
// the bookmark is now active.
func (p *PostModule) ToggleBookmark(userID, postID uint) (bool, error) {
	var active bool
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var bookmark models.Bookmark
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&bookmark)
		if res.Error == nil {
			active = false
			return tx.Delete(&bookmark).Error
		}
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}
		active = true
		return tx.Create(&models.Bookmark{UserID: userID, PostID: postID}).Error
	})
	return active, err
}

func (p *PostModule) postExists(postID uint) (bool, error) {
	var count int64
	err := p.db.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error
	return count > 0, err
}

// requirePost resolves the existence check for a handler: a query failure is
// a 500, a missing post a 404. Returns false when the response was already
// written.
func (p *PostModule) requirePost(c *gin.Context, postID uint) bool {
	exists, err := p.postExists(postID)
	if err != nil {
		p.log.Error(c.Request.Context(), "post lookup failed", "post", postID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading post"})
		return false
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Post not found"})
		return false
	}
	return true
}

func (p *PostModule) toggleLike(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}
	if !p.requirePost(c, postID) {
		return
	}

	active, err := p.ToggleLike(ident.UserID, postID)
	if err != nil {
		p.log.Error(c.Request.Context(), "like toggle failed", "post", postID, "user", ident.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error toggling like"})
		return
	}

	message := "unliked"
	if active {
		message = "liked"
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "message": message})
}

func (p *PostModule) toggleBookmark(c *gin.Context) {
	ident, _ := auth.CurrentUser(c)
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}
	if !p.requirePost(c, postID) {
		return
	}

	active, err := p.ToggleBookmark(ident.UserID, postID)
	if err != nil {
		p.log.Error(c.Request.Context(), "bookmark toggle failed", "post", postID, "user", ident.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error toggling bookmark"})
		return
	}

	// the bookmark response reports the new state in the status field
	if active {
		c.JSON(http.StatusOK, gin.H{"status": true, "message": "Bookmarked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": false, "message": "Removed from bookmarks"})
}

// pairEntry is the row shape for the like/bookmark listings of a post.
type pairEntry struct {
	PostID uint `json:"postId"`
	UserID uint `json:"userId"`
}

func (p *PostModule) getPostLikes(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}
	if !p.requirePost(c, postID) {
		return
	}

	entries := make([]pairEntry, 0)
	if err := p.db.Raw(`SELECT post_id, user_id FROM likes WHERE post_id = ?`, postID).Scan(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading likes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": entries})
}

func (p *PostModule) getPostBookmarks(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}
	if !p.requirePost(c, postID) {
		return
	}

	entries := make([]pairEntry, 0)
	if err := p.db.Raw(`SELECT post_id, user_id FROM bookmarks WHERE post_id = ?`, postID).Scan(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading bookmarks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": entries})
}

func (p *PostModule) getBookmarkedPosts(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	summaries, err := p.summariesByBookmarker(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading bookmarks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "result": summaries})
}
