package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quillback/quillback/internal/models"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/api/summary", handleSummary(db))
	router.GET("/api/sessions", handleSessionList(db))
	router.GET("/api/sessions/:id", handleSessionDetail(db))
	router.GET("/api/events", handleSSE(db))
}

func handleSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := PipelineSummary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, counts)
	}
}

func handleSessionList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		rows, err := SessionList(db, c.Query("provider"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": rows})
	}
}

func handleSessionDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		var sess models.Session
		err := db.Where("session_id = ?", sessionID).First(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var metrics *models.SessionMetrics
		var m models.SessionMetrics
		if err := db.Where("session_id = ?", sessionID).First(&m).Error; err == nil {
			metrics = &m
		}

		c.JSON(http.StatusOK, gin.H{
			"session": sess,
			"metrics": metrics,
		})
	}
}
