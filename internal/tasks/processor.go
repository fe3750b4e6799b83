package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"scribe/internal/config"
	"scribe/internal/models"
	"scribe/internal/pkg/arxiv"
	"scribe/internal/pkg/assistant"
	"scribe/internal/pkg/notion"
	"scribe/internal/pkg/rerank"
)

const (
	searchCandidates = 50
	digestPapers     = 3
)

// TaskProcessor holds dependencies for our task handlers
type TaskProcessor struct {
	DB          *gorm.DB
	config      *config.Config
	arxivClient *arxiv.Client
	assistant   *assistant.Assistant
	reranker    *rerank.Reranker
	enqueuer    *asynq.Client

	notionClient *notion.Client
	notionErr    error
}

// NewTaskProcessor creates a new TaskProcessor. The enqueuer may be nil when
// the processor never chains tasks (tests, one-shot runs).
func NewTaskProcessor(db *gorm.DB, cfg *config.Config, enqueuer *asynq.Client) *TaskProcessor {
	p := &TaskProcessor{
		DB:          db,
		config:      cfg,
		arxivClient: arxiv.New(cfg.ArxivBaseURL),
		assistant:   assistant.New(cfg.OpenAIAPIKey),
		reranker:    rerank.New(cfg.OpenAIAPIKey),
		enqueuer:    enqueuer,
	}

	// Publishing config errors surface per record, not at startup.
	p.notionClient, p.notionErr = notion.New(cfg.NotionAPIKey, cfg.NotionDatabase, cfg.NotionBaseURL)

	return p
}

func (p *TaskProcessor) GetArxivClient() *arxiv.Client {
	return p.arxivClient
}

func (p *TaskProcessor) GetNotionClient() *notion.Client {
	return p.notionClient
}

// UseDefaultHTTPClients routes the outbound HTTP clients through
// http.DefaultClient so the test transport can intercept them.
func (p *TaskProcessor) UseDefaultHTTPClients() {
	p.arxivClient.UseDefaultClient()
	if p.notionClient != nil {
		p.notionClient.UseDefaultClient()
	}
}

func (p *TaskProcessor) HandleRunResearchTask(ctx context.Context, t *asynq.Task) error {
	var payload RunResearchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	log.Printf("Running research for record %d", payload.RecordID)

	record, err := gorm.G[models.ResearchRecord](p.DB).Where("id = ?", payload.RecordID).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("record %d not found: %w", payload.RecordID, asynq.SkipRetry)
		}
		return err
	}

	if err := p.runResearch(ctx, &record); err != nil {
		log.Printf("research failed for record %d: %v", record.ID, err)
		p.markFailed(ctx, record.ID)
		return err
	}

	if p.enqueuer != nil {
		task, err := NewPublishRecordTask(record.ID)
		if err != nil {
			return err
		}

		if _, err := p.enqueuer.Enqueue(task); err != nil {
			return fmt.Errorf("enqueue publish task: %w", err)
		}
	}

	return nil
}

func (p *TaskProcessor) runResearch(ctx context.Context, record *models.ResearchRecord) error {
	searchQuery, planTokens, err := p.assistant.PlanSearch(ctx, record.Query)
	if err != nil {
		return fmt.Errorf("plan search: %w", err)
	}

	log.Printf("Planned arXiv query for record %d: %s", record.ID, searchQuery)

	papers, err := p.arxivClient.Search(ctx, searchQuery, searchCandidates)
	if err != nil {
		return fmt.Errorf("search arXiv: %w", err)
	}

	candidates := make([]string, len(papers))
	for i, paper := range papers {
		candidates[i] = paper.Summary
	}

	scores, err := p.reranker.Rank(ctx, record.Query, candidates)
	if err != nil {
		return fmt.Errorf("rerank papers: %w", err)
	}

	topRanked := rerank.Top(scores, digestPapers)
	topPapers := make([]arxiv.Paper, len(topRanked))
	for i, ranked := range topRanked {
		topPapers[i] = papers[ranked.Index]
	}

	digest, digestTokens, err := p.assistant.Digest(ctx, record.Query, topPapers)
	if err != nil {
		return fmt.Errorf("write digest: %w", err)
	}

	for i, ranked := range topRanked {
		paper := papers[ranked.Index]

		// Older feed entries sometimes omit metadata; the landing page
		// has it. Failures here are not worth failing the record over.
		if err := p.arxivClient.Enrich(ctx, &paper); err != nil {
			log.Printf("failed to enrich paper %s: %v", paper.ID, err)
		}

		ref := models.PaperRef{
			ResearchRecordID: record.ID,
			ArxivID:          paper.ID,
			Title:            paper.Title,
			Summary:          paper.Summary,
			Authors:          strings.Join(paper.Authors, ", "),
			PDFURL:           paper.PDFURL,
			AbsURL:           paper.AbsURL,
			Score:            ranked.Score,
			Position:         i,
			Published:        paper.Published,
		}

		result := gorm.WithResult()
		if err := gorm.G[models.PaperRef](p.DB, result).Create(ctx, &ref); err != nil {
			return err
		}
	}

	record.SearchQuery = searchQuery
	record.Digest = digest
	record.Title = notion.DeriveTitle(record.Query)
	record.Status = models.StatusCompleted
	record.UsedTokens = planTokens + digestTokens

	_, err = gorm.G[models.ResearchRecord](p.DB).Where("id = ?", record.ID).Updates(ctx, *record)
	return err
}

// HandlePublishRecordTask publishes one completed record to Notion. All
// publish failures are terminal: configuration, permission and validation
// errors name the broken piece and are never retried.
func (p *TaskProcessor) HandlePublishRecordTask(ctx context.Context, t *asynq.Task) error {
	var payload PublishRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	record, err := gorm.G[models.ResearchRecord](p.DB).Where("id = ?", payload.RecordID).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("record %d not found: %w", payload.RecordID, asynq.SkipRetry)
		}
		return err
	}

	if p.notionErr != nil {
		p.markFailed(ctx, record.ID)
		return fmt.Errorf("notion not configured: %v: %w", p.notionErr, asynq.SkipRetry)
	}

	refs, err := gorm.G[models.PaperRef](p.DB).Where("research_record_id = ?", record.ID).Order("position ASC").Find(ctx)
	if err != nil {
		return err
	}

	sources := make([]notion.SourcePaper, len(refs))
	for i, ref := range refs {
		sources[i] = notion.SourcePaper{
			Title:  ref.Title,
			AbsURL: ref.AbsURL,
			PDFURL: ref.PDFURL,
		}
	}

	page, err := p.notionClient.CreateRecord(ctx, notion.Record{
		Query:     record.Query,
		Title:     record.Title,
		Summary:   record.Digest,
		Papers:    sources,
		CreatedAt: record.CreatedAt,
	})

	if err != nil {
		log.Printf("failed to publish record %d: %v", record.ID, err)
		p.markFailed(ctx, record.ID)
		return fmt.Errorf("publish record %d: %v: %w", record.ID, err, asynq.SkipRetry)
	}

	record.NotionPageID = page.ID
	record.NotionURL = page.URL
	record.Status = models.StatusPublished

	if _, err := gorm.G[models.ResearchRecord](p.DB).Where("id = ?", record.ID).Updates(ctx, record); err != nil {
		return err
	}

	log.Printf("published record %d: %s", record.ID, page.URL)

	return nil
}

// HandlePublishPendingTask re-enqueues completed records that never made it
// to Notion (e.g. the worker restarted between research and publish).
func (p *TaskProcessor) HandlePublishPendingTask(ctx context.Context, t *asynq.Task) error {
	if p.enqueuer == nil {
		return nil
	}

	records, err := gorm.G[models.ResearchRecord](p.DB).Where("status = ?", models.StatusCompleted).Find(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		task, err := NewPublishRecordTask(record.ID)
		if err != nil {
			return err
		}

		if _, err := p.enqueuer.Enqueue(task); err != nil {
			return err
		}

		log.Printf("re-enqueued publish for record %d", record.ID)
	}

	return nil
}

func (p *TaskProcessor) markFailed(ctx context.Context, recordID uint) {
	if _, err := gorm.G[models.ResearchRecord](p.DB).Where("id = ?", recordID).Update(ctx, "status", models.StatusFailed); err != nil {
		log.Printf("failed to mark record %d failed: %v", recordID, err)
	}
}
