package controllers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"scribe/internal/models"
	"scribe/internal/pkg/speech"
	"scribe/internal/tasks"
)

type ResearchController struct {
	DB    *gorm.DB
	Queue *asynq.Client
	Synth *speech.Synthesizer
}

type CreateResearchRequest struct {
	Query string `json:"query"`
}

type RecordResponse struct {
	ID         uint   `json:"id"`
	Query      string `json:"query"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Digest     string `json:"digest,omitempty"`
	NotionURL  string `json:"notion_url,omitempty"`
	CreatedAt  string `json:"created_at"`
	UsedTokens int64  `json:"used_tokens,omitempty"`
}

func toRecordResponse(record models.ResearchRecord, withDigest bool) RecordResponse {
	resp := RecordResponse{
		ID:         record.ID,
		Query:      record.Query,
		Title:      record.Title,
		Status:     record.Status,
		NotionURL:  record.NotionURL,
		CreatedAt:  record.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UsedTokens: record.UsedTokens,
	}

	if withDigest {
		resp.Digest = record.Digest
	}

	return resp
}

// CreateResearch accepts a research question and enqueues the pipeline
func (rc *ResearchController) CreateResearch(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
		return
	}

	record := models.ResearchRecord{
		Query:  req.Query,
		Status: models.StatusPending,
	}

	result := gorm.WithResult()
	if err := gorm.G[models.ResearchRecord](rc.DB, result).Create(ctx, &record); err != nil {
		log.Printf("failed to create record: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	task, err := tasks.NewRunResearchTask(record.ID)
	if err != nil {
		log.Printf("failed to build research task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	if _, err := rc.Queue.Enqueue(task); err != nil {
		log.Printf("failed to enqueue research task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"record": toRecordResponse(record, false)})
}

// GetRecords returns stored research records, newest first
func (rc *ResearchController) GetRecords(c *gin.Context) {
	ctx := c.Request.Context()
	limit := getLimitWithDefault(c, 100)

	query := gorm.G[models.ResearchRecord](rc.DB).Order("created_at DESC").Limit(limit)
	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("query ILIKE ? OR title ILIKE ?", pattern, pattern)
	}

	records, err := query.Find(ctx)
	if err != nil {
		log.Printf("failed to get records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	responses := make([]RecordResponse, len(records))
	for i, record := range records {
		responses[i] = toRecordResponse(record, false)
	}

	c.JSON(http.StatusOK, gin.H{
		"records": responses,
	})
}

// GetRecord returns one record with its paper references
func (rc *ResearchController) GetRecord(c *gin.Context) {
	ctx := c.Request.Context()

	record, ok := rc.findRecord(c)
	if !ok {
		return
	}

	papers, err := gorm.G[models.PaperRef](rc.DB).Where("research_record_id = ?", record.ID).Order("position ASC").Find(ctx)
	if err != nil {
		log.Printf("failed to get paper refs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record": toRecordResponse(record, true),
		"papers": papers,
	})
}

// GetRecordAudio returns the spoken digest as MP3
func (rc *ResearchController) GetRecordAudio(c *gin.Context) {
	record, ok := rc.findRecord(c)
	if !ok {
		return
	}

	if record.Digest == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Record has no digest yet"})
		return
	}

	audio, err := rc.Synth.Synthesize(c.Request.Context(), record.Digest)
	if err != nil {
		log.Printf("failed to synthesize digest for record %d: %v", record.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// SearchRecords serves the MCP shim: substring search over query, title and
// digest
func (rc *ResearchController) SearchRecords(c *gin.Context) {
	ctx := c.Request.Context()

	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit := getLimitWithDefault(c, 10)
	if limit > 100 {
		limit = 100
	}

	pattern := "%" + term + "%"
	records, err := gorm.G[models.ResearchRecord](rc.DB).
		Where("query ILIKE ? OR title ILIKE ? OR digest ILIKE ?", pattern, pattern, pattern).
		Order("created_at DESC").Limit(limit).Find(ctx)
	if err != nil {
		log.Printf("failed to search records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	responses := make([]RecordResponse, len(records))
	for i, record := range records {
		responses[i] = toRecordResponse(record, true)
	}

	c.JSON(http.StatusOK, gin.H{
		"records": responses,
	})
}

func (rc *ResearchController) findRecord(c *gin.Context) (models.ResearchRecord, bool) {
	ctx := c.Request.Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid record id"})
		return models.ResearchRecord{}, false
	}

	record, err := gorm.G[models.ResearchRecord](rc.DB).Where("id = ?", id).First(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return models.ResearchRecord{}, false
		}

		log.Printf("failed to get record: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return models.ResearchRecord{}, false
	}

	return record, true
}

func getLimitWithDefault(c *gin.Context, defaultValue int) int {
	var err error
	limit := defaultValue
	if c.Query("limit") != "" {
		limit, err = strconv.Atoi(c.Query("limit"))
		if err != nil {
			log.Printf("failed to parse limit: %v, using default value: %d", err, defaultValue)
			return defaultValue
		}
	}
	return limit
}
