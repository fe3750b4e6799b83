package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"scribe/internal/config"
	"scribe/internal/pkg/arxiv"
	"scribe/internal/pkg/assistant"
	"scribe/internal/pkg/notion"
	"scribe/internal/pkg/rerank"
)

// One-shot research run: plan an arXiv query for the question, fetch and
// rerank candidates, write a digest, and publish the record to Notion.
// Usage: scribe "find recent papers on retrieval augmented generation"
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: scribe <research question>")
	}
	question := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if question == "" {
		log.Fatal("research question must not be empty")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	planner, err := assistant.NewFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	reranker, err := rerank.NewFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	publisher, err := notion.New(cfg.NotionAPIKey, cfg.NotionDatabase, cfg.NotionBaseURL)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	searchQuery, _, err := planner.PlanSearch(ctx, question)
	if err != nil {
		log.Fatalf("Failed to plan search: %v", err)
	}
	log.Printf("arXiv query: %s", searchQuery)

	papers, err := arxiv.New(cfg.ArxivBaseURL).Search(ctx, searchQuery, 50)
	if err != nil {
		log.Fatalf("Failed to search arXiv: %v", err)
	}
	log.Printf("Fetched %d candidate papers", len(papers))

	candidates := make([]string, len(papers))
	for i, paper := range papers {
		candidates[i] = paper.Summary
	}

	scores, err := reranker.Rank(ctx, question, candidates)
	if err != nil {
		log.Fatalf("Failed to rerank papers: %v", err)
	}

	var top []arxiv.Paper
	var sources []notion.SourcePaper
	for _, ranked := range rerank.Top(scores, 3) {
		paper := papers[ranked.Index]
		top = append(top, paper)
		sources = append(sources, notion.SourcePaper{
			Title:  paper.Title,
			AbsURL: paper.AbsURL,
			PDFURL: paper.PDFURL,
		})
		log.Printf("  %.3f  %s", ranked.Score, paper.Title)
	}

	digest, _, err := planner.Digest(ctx, question, top)
	if err != nil {
		log.Fatalf("Failed to write digest: %v", err)
	}

	fmt.Println(digest)

	page, err := publisher.CreateRecord(ctx, notion.Record{
		Query:   question,
		Summary: digest,
		Papers:  sources,
	})
	if err != nil {
		log.Fatalf("Failed to publish to Notion: %v", err)
	}

	log.Printf("Published to Notion: %s", page.URL)
}
