package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"scribe/internal/config"
	"scribe/internal/db"
	"scribe/internal/models"
	"scribe/internal/tasks"
	"scribe/internal/testhelpers"
)

const testDatabaseID = "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6"

func publishPayload(recordID uint) *asynq.Task {
	task, err := tasks.NewPublishRecordTask(recordID)
	Expect(err).NotTo(HaveOccurred())
	return task
}

func createRecord(dbConn *gorm.DB, ctx context.Context, record *models.ResearchRecord) *models.ResearchRecord {
	result := gorm.WithResult()
	Expect(gorm.G[models.ResearchRecord](dbConn, result).Create(ctx, record)).To(Succeed())
	Expect(result.RowsAffected).To(Equal(int64(1)))
	return record
}

func createPaperRef(dbConn *gorm.DB, ctx context.Context, ref *models.PaperRef) *models.PaperRef {
	result := gorm.WithResult()
	Expect(gorm.G[models.PaperRef](dbConn, result).Create(ctx, ref)).To(Succeed())
	Expect(result.RowsAffected).To(Equal(int64(1)))
	return ref
}

var _ = Describe("HandlePublishRecordTask", func() {
	var dbConn *gorm.DB
	var cfg *config.Config
	var p *tasks.TaskProcessor

	var notionPageCreated = `{"id": "page-xyz", "url": "https://www.notion.so/page-xyz"}`

	BeforeEach(func() {
		var err error
		cfg, err = config.LoadConfig()
		Expect(err).NotTo(HaveOccurred())

		dbConn, err = db.InitDB(cfg.DatabaseURL)
		if err != nil {
			Skip("database not available: " + err.Error())
		}

		Expect(db.Migrate(dbConn)).To(Succeed())
		testhelpers.CleanupDB(dbConn)

		cfg.NotionAPIKey = "secret_test"
		cfg.NotionDatabase = testDatabaseID

		p = tasks.NewTaskProcessor(dbConn, cfg, nil)

		testhelpers.Activate()
		p.UseDefaultHTTPClients()
	})

	AfterEach(func() {
		testhelpers.Deactivate()
	})

	It("publishes a completed record and stores the page reference", func() {
		ctx := context.Background()

		record := createRecord(dbConn, ctx, &models.ResearchRecord{
			Query:  "diffusion models for audio",
			Title:  "Research: diffusion models for audio",
			Digest: "One paper matters.",
			Status: models.StatusCompleted,
		})

		createPaperRef(dbConn, ctx, &models.PaperRef{
			ResearchRecordID: record.ID,
			ArxivID:          "2601.01234v1",
			Title:            "Audio Diffusion",
			AbsURL:           "http://arxiv.org/abs/2601.01234v1",
			Score:            0.92,
			Position:         0,
			Published:        time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
		})

		exp := testhelpers.New("https://api.notion.com").
			Post("/v1/pages").Reply(200).
			BodyString(notionPageCreated).
			Header("Content-Type", "application/json")

		err := p.HandlePublishRecordTask(ctx, publishPayload(record.ID))
		Expect(err).NotTo(HaveOccurred())
		Expect(testhelpers.IsDone()).To(BeTrue())

		var payload struct {
			Parent struct {
				DatabaseID string `json:"database_id"`
			} `json:"parent"`
		}
		Expect(json.Unmarshal(exp.ReceivedBody, &payload)).To(Succeed())
		Expect(payload.Parent.DatabaseID).To(Equal(testDatabaseID))

		updated, err := gorm.G[models.ResearchRecord](dbConn).Where("id = ?", record.ID).First(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(models.StatusPublished))
		Expect(updated.NotionPageID).To(Equal("page-xyz"))
		Expect(updated.NotionURL).To(Equal("https://www.notion.so/page-xyz"))
	})

	It("marks the record failed and skips retry on permission errors", func() {
		ctx := context.Background()

		record := createRecord(dbConn, ctx, &models.ResearchRecord{
			Query:  "something",
			Digest: "digest",
			Status: models.StatusCompleted,
		})

		testhelpers.New("https://api.notion.com").
			Post("/v1/pages").Reply(404).
			BodyString(`{"object":"error","status":404,"code":"object_not_found","message":"Could not find database."}`)

		err := p.HandlePublishRecordTask(ctx, publishPayload(record.ID))
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, asynq.SkipRetry)).To(BeTrue())

		updated, err := gorm.G[models.ResearchRecord](dbConn).Where("id = ?", record.ID).First(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(models.StatusFailed))
		Expect(updated.NotionPageID).To(BeEmpty())
	})

	It("fails fast naming the missing variable when Notion is not configured", func() {
		ctx := context.Background()

		record := createRecord(dbConn, ctx, &models.ResearchRecord{
			Query:  "something",
			Digest: "digest",
			Status: models.StatusCompleted,
		})

		unconfigured := *cfg
		unconfigured.NotionAPIKey = ""
		broken := tasks.NewTaskProcessor(dbConn, &unconfigured, nil)

		err := broken.HandlePublishRecordTask(ctx, publishPayload(record.ID))
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, asynq.SkipRetry)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("NOTION_API_KEY"))

		updated, err := gorm.G[models.ResearchRecord](dbConn).Where("id = ?", record.ID).First(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(models.StatusFailed))
	})

	It("skips retry for unknown records", func() {
		err := p.HandlePublishRecordTask(context.Background(), publishPayload(99999))
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, asynq.SkipRetry)).To(BeTrue())
	})
})
