package topics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkpost/models"
)

type TopicModule struct {
	db *gorm.DB
}

func NewTopicModule(db *gorm.DB) *TopicModule {
	return &TopicModule{db: db}
}

func (m *TopicModule) RegisterRoutes(router *gin.Engine, gate gin.HandlerFunc) {
	g := router.Group("/")
	g.Use(gate)
	g.GET("/topics", m.getTopics)
}

// getTopics lists every tag in use. Topics are created as a side effect of
// posting, never directly.
func (m *TopicModule) getTopics(c *gin.Context) {
	allTopics := make([]models.Topic, 0)
	if err := m.db.Order("name").Find(&allTopics).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Error loading topics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "topics": allTopics})
}
