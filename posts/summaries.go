package posts

import (
	"bytes"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

// PostSummary is the read-side projection for list views: one row per post
// with owner info and the aggregated like count.
type PostSummary struct {
	PostID      uint      `json:"postId"`
	Username    string    `json:"username"`
	UserImgURL  string    `json:"userImgUrl"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PostImg     string    `json:"postImg"`
	LikeCount   int       `json:"likeCount"`
	LikedByUser int       `json:"likedByUser"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SinglePost adds the comment count and the rendered HTML body on top of
// the summary fields.
type SinglePost struct {
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	UserImgURL    string    `json:"userImgUrl"`
	DisplayName   string    `json:"displayName"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	ContentHTML   string    `json:"contentHtml" gorm:"-"`
	ImgURL        string    `json:"imgUrl"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

const summarySelect = `
SELECT p.id AS post_id,
       u.username AS username,
       COALESCE(pr.img_url, '') AS user_img_url,
       p.title AS title,
       p.content AS content,
       COALESCE(p.img_url, '') AS post_img,
       p.created_at AS created_at,
       COUNT(l.id) AS like_count`

const summaryJoins = `
FROM posts p
JOIN users u ON u.id = p.user_id
LEFT JOIN profiles pr ON pr.user_id = p.user_id
LEFT JOIN likes l ON l.post_id = p.id`

const summaryGroup = `
GROUP BY p.id, u.username, pr.img_url, p.title, p.content, p.img_url, p.created_at`

const summaryOrder = `
ORDER BY p.created_at DESC`

// allSummaries lists every post, with likedByUser computed relative to the
// viewer.
func (p *PostModule) allSummaries(viewerID uint) ([]PostSummary, error) {
	summaries := make([]PostSummary, 0)
	err := p.db.Raw(summarySelect+`,
       MAX(CASE WHEN l.user_id = ? THEN 1 ELSE 0 END) AS liked_by_user`+
		summaryJoins+summaryGroup+summaryOrder, viewerID).
		Scan(&summaries).Error
	return summaries, err
}

func (p *PostModule) paginatedSummaries(viewerID uint, page, size int) ([]PostSummary, int64, error) {
	var total int64
	if err := p.db.Raw(`SELECT COUNT(*) FROM posts`).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	summaries := make([]PostSummary, 0)
	err := p.db.Raw(summarySelect+`,
       MAX(CASE WHEN l.user_id = ? THEN 1 ELSE 0 END) AS liked_by_user`+
		summaryJoins+summaryGroup+summaryOrder+`
LIMIT ? OFFSET ?`, viewerID, size, page*size).
		Scan(&summaries).Error
	return summaries, total, err
}

func (p *PostModule) summariesByUserID(userID uint) ([]PostSummary, error) {
	summaries := make([]PostSummary, 0)
	err := p.db.Raw(summarySelect+summaryJoins+`
WHERE u.id = ?`+summaryGroup+summaryOrder, userID).
		Scan(&summaries).Error
	return summaries, err
}

func (p *PostModule) summariesByUsername(username string) ([]PostSummary, error) {
	summaries := make([]PostSummary, 0)
	err := p.db.Raw(summarySelect+summaryJoins+`
WHERE u.username = ?`+summaryGroup+summaryOrder, username).
		Scan(&summaries).Error
	return summaries, err
}

func (p *PostModule) summariesByTopicID(topicID uint) ([]PostSummary, error) {
	summaries := make([]PostSummary, 0)
	err := p.db.Raw(summarySelect+summaryJoins+`
JOIN post_topics pt ON pt.post_id = p.id
WHERE pt.topic_id = ?`+summaryGroup+summaryOrder, topicID).
		Scan(&summaries).Error
	return summaries, err
}

// summariesByBookmarker lists the posts a given user has bookmarked.
func (p *PostModule) summariesByBookmarker(userID uint) ([]PostSummary, error) {
	summaries := make([]PostSummary, 0)
	err := p.db.Raw(summarySelect+summaryJoins+`
JOIN bookmarks bm ON bm.post_id = p.id
WHERE bm.user_id = ?`+summaryGroup+summaryOrder, userID).
		Scan(&summaries).Error
	return summaries, err
}

func (p *PostModule) singlePost(postID uint) (*SinglePost, error) {
	var post SinglePost
	res := p.db.Raw(`
SELECT p.id AS id,
       u.username AS username,
       COALESCE(pr.img_url, '') AS user_img_url,
       COALESCE(pr.display_name, '') AS display_name,
       p.title AS title,
       p.content AS content,
       COALESCE(p.img_url, '') AS img_url,
       p.created_at AS created_at,
       COUNT(DISTINCT l.id) AS likes_count,
       COUNT(DISTINCT c.id) AS comments_count
FROM posts p
JOIN users u ON u.id = p.user_id
LEFT JOIN profiles pr ON pr.user_id = p.user_id
LEFT JOIN likes l ON l.post_id = p.id
LEFT JOIN comments c ON c.post_id = p.id
WHERE p.id = ?
GROUP BY p.id, u.username, pr.img_url, pr.display_name, p.title, p.content, p.img_url, p.created_at`, postID).
		Scan(&post)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	post.ContentHTML = renderMarkdown(post.Content)
	return &post, nil
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// on render failure fall back to the raw content
		return content
	}
	return buf.String()
}
