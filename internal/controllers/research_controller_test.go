package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/controllers"
	"scribe/internal/db"
	"scribe/internal/models"
	"scribe/internal/routes"
	"scribe/internal/testhelpers"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func createRecord(dbConn *gorm.DB, ctx context.Context, record *models.ResearchRecord) *models.ResearchRecord {
	result := gorm.WithResult()
	Expect(gorm.G[models.ResearchRecord](dbConn, result).Create(ctx, record)).To(Succeed())
	Expect(result.RowsAffected).To(Equal(int64(1)))
	return record
}

func createPaperRef(dbConn *gorm.DB, ctx context.Context, ref *models.PaperRef) *models.PaperRef {
	if ref.Published.IsZero() {
		ref.Published = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	result := gorm.WithResult()
	Expect(gorm.G[models.PaperRef](dbConn, result).Create(ctx, ref)).To(Succeed())
	Expect(result.RowsAffected).To(Equal(int64(1)))
	return ref
}

var _ = Describe("ResearchController", func() {
	var (
		dbConn *gorm.DB
		router *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)

		cfg, err := config.LoadConfig()
		Expect(err).NotTo(HaveOccurred())

		dbConn, err = db.InitDB(cfg.DatabaseURL)
		if err != nil {
			Skip("database not available: " + err.Error())
		}

		Expect(db.Migrate(dbConn)).To(Succeed())
		testhelpers.CleanupDB(dbConn)

		// GET endpoints never touch the queue
		router = routes.SetupRouter(dbConn, cfg, nil)
	})

	Describe("POST /api/v1/research", func() {
		It("rejects an invalid body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/research", strings.NewReader("not json"))
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an empty query", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/research", strings.NewReader(`{"query": "   "}`))
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))

			var body struct {
				Error string `json:"error"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Error).To(ContainSubstring("query"))
		})
	})

	Describe("GET /api/v1/records/", func() {
		BeforeEach(func() {
			ctx := context.Background()

			createRecord(dbConn, ctx, &models.ResearchRecord{
				Query:     "transformer interpretability",
				Title:     "Research: transformer interpretability",
				Status:    models.StatusPublished,
				NotionURL: "https://www.notion.so/abc",
				CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			})

			createRecord(dbConn, ctx, &models.ResearchRecord{
				Query:     "protein folding",
				Title:     "Research: protein folding",
				Status:    models.StatusPending,
				CreatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
			})
		})

		It("returns records newest first", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Records []controllers.RecordResponse `json:"records"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Records).To(HaveLen(2))
			Expect(body.Records[0].Query).To(Equal("protein folding"))
			Expect(body.Records[1].Query).To(Equal("transformer interpretability"))
		})

		It("filters records by search term", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/?search=protein", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Records []controllers.RecordResponse `json:"records"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Records).To(HaveLen(1))
			Expect(body.Records[0].Query).To(Equal("protein folding"))
		})

		It("respects the limit parameter", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/?limit=1", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Records []controllers.RecordResponse `json:"records"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Records).To(HaveLen(1))
		})
	})

	Describe("GET /api/v1/records/:id", func() {
		It("returns the record with its papers", func() {
			ctx := context.Background()

			record := createRecord(dbConn, ctx, &models.ResearchRecord{
				Query:  "graph neural networks",
				Title:  "Research: graph neural networks",
				Digest: "Two papers stand out.",
				Status: models.StatusCompleted,
			})

			createPaperRef(dbConn, ctx, &models.PaperRef{
				ResearchRecordID: record.ID,
				ArxivID:          "2602.00001v1",
				Title:            "GNNs Revisited",
				AbsURL:           "http://arxiv.org/abs/2602.00001v1",
				Position:         0,
			})

			createPaperRef(dbConn, ctx, &models.PaperRef{
				ResearchRecordID: record.ID,
				ArxivID:          "2602.00002v1",
				Title:            "Message Passing at Scale",
				AbsURL:           "http://arxiv.org/abs/2602.00002v1",
				Position:         1,
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/"+strconv.Itoa(int(record.ID)), nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Record controllers.RecordResponse `json:"record"`
				Papers []models.PaperRef          `json:"papers"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Record.Digest).To(Equal("Two papers stand out."))
			Expect(body.Papers).To(HaveLen(2))
			Expect(body.Papers[0].ArxivID).To(Equal("2602.00001v1"))
			Expect(body.Papers[1].ArxivID).To(Equal("2602.00002v1"))
		})

		It("returns 404 for an unknown record", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/99999", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/abc", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/v1/records/:id/audio", func() {
		It("returns 409 when the record has no digest", func() {
			ctx := context.Background()

			record := createRecord(dbConn, ctx, &models.ResearchRecord{
				Query:  "still pending",
				Status: models.StatusPending,
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/records/"+strconv.Itoa(int(record.ID))+"/audio", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("GET /api/v1/mcp/records/search", func() {
		BeforeEach(func() {
			ctx := context.Background()

			createRecord(dbConn, ctx, &models.ResearchRecord{
				Query:  "reinforcement learning from human feedback",
				Title:  "Research: reinforcement learning from human f...",
				Digest: "Alignment work dominates.",
				Status: models.StatusPublished,
			})

			createRecord(dbConn, ctx, &models.ResearchRecord{
				Query:  "quantum error correction",
				Title:  "Research: quantum error correction",
				Digest: "Surface codes keep winning.",
				Status: models.StatusPublished,
			})
		})

		It("requires a search term", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/mcp/records/search", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("matches against the digest too", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/mcp/records/search?q=surface+codes", nil)
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Records []controllers.RecordResponse `json:"records"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Records).To(HaveLen(1))
			Expect(body.Records[0].Query).To(Equal("quantum error correction"))
			Expect(body.Records[0].Digest).To(Equal("Surface codes keep winning."))
		})
	})
})
