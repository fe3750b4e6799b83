package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"scribe/internal/pkg/arxiv"
)

const defaultModel = shared.ResponsesModel("gpt-5.1")

var (
	// ErrMissingAPIKey is returned when OPENAI_API_KEY was not configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

	reFunctionCall = regexp.MustCompile(`\{[^{}]*"function"[^{}]*\{[^{}]*\}[^{}]*\}`)
)

// Assistant wraps the OpenAI responses client for query planning and
// multi-paper digests.
type Assistant struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewFromEnv builds an Assistant using the OPENAI_API_KEY env var.
func NewFromEnv() (*Assistant, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	return New(apiKey), nil
}

func New(apiKey string) *Assistant {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Assistant{client: &client, model: defaultModel}
}

type functionCall struct {
	Function  string `json:"function"`
	Arguments struct {
		Query string `json:"query"`
	} `json:"arguments"`
}

// PlanSearch turns a research question into an arXiv API query string.
// Returns the query, tokens used, and an error.
func (a *Assistant) PlanSearch(ctx context.Context, question string) (string, int64, error) {
	if a == nil || a.client == nil {
		return "", 0, errors.New("Assistant is not initialized")
	}

	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(plannerPrompt, responses.EasyInputMessageRoleSystem),
				responses.ResponseInputItemParamOfMessage(question, responses.EasyInputMessageRoleUser),
			},
		},
	})

	if err != nil {
		return "", 0, fmt.Errorf("call OpenAI: %w", err)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return "", resp.Usage.TotalTokens, errors.New("model returned an empty response")
	}

	query := RouteSearchCall(output)
	if query == "" {
		query = FallbackQuery(question)
	}

	return query, resp.Usage.TotalTokens, nil
}

// RouteSearchCall extracts the search_arxiv query from a model response.
// Returns "" when the output is not a search_arxiv function call.
func RouteSearchCall(output string) string {
	var call functionCall
	if err := json.Unmarshal([]byte(output), &call); err != nil {
		match := reFunctionCall.FindString(output)
		if match == "" {
			return ""
		}

		if err := json.Unmarshal([]byte(match), &call); err != nil {
			return ""
		}
	}

	if call.Function != "search_arxiv" {
		return ""
	}

	return strings.TrimSpace(call.Arguments.Query)
}

// FallbackQuery builds a plain all-fields query when planning fails.
func FallbackQuery(question string) string {
	terms := strings.Fields(question)
	if len(terms) == 0 {
		return ""
	}

	if len(terms) > 6 {
		terms = terms[:6]
	}

	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.Trim(term, `.,;:!?"'`)
		if term == "" {
			continue
		}
		parts = append(parts, "all:"+term)
	}

	return strings.Join(parts, " AND ")
}

// Digest writes a readable multi-paper summary for the question.
func (a *Assistant) Digest(ctx context.Context, question string, papers []arxiv.Paper) (string, int64, error) {
	if a == nil || a.client == nil {
		return "", 0, errors.New("Assistant is not initialized")
	}

	if len(papers) == 0 {
		return "", 0, errors.New("no papers to summarize")
	}

	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(digestPrompt, responses.EasyInputMessageRoleSystem),
				responses.ResponseInputItemParamOfMessage(buildDigestPrompt(question, papers), responses.EasyInputMessageRoleUser),
			},
		},
	})

	if err != nil {
		return "", 0, fmt.Errorf("call OpenAI: %w", err)
	}

	output := strings.TrimSpace(resp.OutputText())
	if output == "" {
		return "", resp.Usage.TotalTokens, errors.New("model returned an empty response")
	}

	return output, resp.Usage.TotalTokens, nil
}

func buildDigestPrompt(question string, papers []arxiv.Paper) string {
	builder := strings.Builder{}
	builder.WriteString("The user asked: ")
	builder.WriteString(question)
	builder.WriteString("\n\nPapers:\n")

	for i, paper := range papers {
		fmt.Fprintf(&builder, "\n%d. Title: %s\n", i+1, paper.Title)
		fmt.Fprintf(&builder, "   Abstract: %s\n", paper.Summary)
		if paper.PDFURL != "" {
			fmt.Fprintf(&builder, "   PDF URL: %s\n", paper.PDFURL)
		}
		if paper.AbsURL != "" {
			fmt.Fprintf(&builder, "   Abstract URL: %s\n", paper.AbsURL)
		}
	}

	return builder.String()
}
