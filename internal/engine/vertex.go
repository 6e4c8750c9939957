package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/sync/errgroup"
)

const parserSystemPrompt = "You are a scientific document parser. Your task is to transcribe one page of an academic PDF into markdown. Accuracy, detail, and information preservation are of utmost importance."

const parserUserPrompt = `You will be provided with a single page of a scientific PDF document.

Follow these instructions to transcribe the page into markdown:

Text: Transcribe all body text directly into markdown, joining lines that belong to the same paragraph.
Mathematics: Transcribe equations and inline math into LaTeX notation.
Tables: Render all tables as markdown tables.
Figures: Replace each figure with its caption; do not describe the image beyond the caption.
Headers and Footers: Ignore running headers, footers, and bare page numbers.

Return only the transcribed markdown for this page, with no preamble.`

// Refusals must fail the page rather than be written out as its text.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// VertexEngine parses pages with a Gemini model on Vertex AI. Each document
// is split into single-page PDFs locally and the pages are sent inline, at
// most pageBatch in flight at once.
type VertexEngine struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	pdf       *PDFInfo
	pageBatch int
}

// NewVertexEngine creates the client and configures the parser model.
func NewVertexEngine(ctx context.Context, projectID, region, modelName string, pageBatch int, pdf *PDFInfo) (*VertexEngine, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexEngine: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(parserSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	if pageBatch < 1 {
		pageBatch = 1
	}
	return &VertexEngine{
		client:    client,
		model:     model,
		modelName: modelName,
		pdf:       pdf,
		pageBatch: pageBatch,
	}, nil
}

func (v *VertexEngine) Name() string { return "vertex:" + v.modelName }

func (v *VertexEngine) Close() error { return v.client.Close() }

// Extract splits each document into pages and parses them with the model.
func (v *VertexEngine) Extract(ctx context.Context, batch []Source, emit PageSink) ([]Result, error) {
	return runBatch(ctx, batch, emit, v.extractOne)
}

func (v *VertexEngine) extractOne(ctx context.Context, src Source, emit PageSink) (int, error) {
	pageCount, err := v.pdf.PageCount(src.Path)
	if err != nil {
		return 0, err
	}
	workdir, err := os.MkdirTemp("", "vertex-split-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(workdir)

	pagePaths, err := splitToPages(src.Path, workdir, pageCount)
	if err != nil {
		return 0, err
	}

	var emitted atomic.Int32
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(v.pageBatch)
	for i, pagePath := range pagePaths {
		pageIndex := i + 1
		eg.Go(func() error {
			text, err := v.parsePage(gctx, pagePath)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageIndex, err)
			}
			if err := emit(src, Page{Index: pageIndex, Text: text}); err != nil {
				return &sinkFault{err: err}
			}
			emitted.Add(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return int(emitted.Load()), err
	}
	return int(emitted.Load()), nil
}

func (v *VertexEngine) parsePage(ctx context.Context, pagePath string) (string, error) {
	raw, err := os.ReadFile(pagePath)
	if err != nil {
		return "", err
	}
	resp, err := v.model.GenerateContent(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: raw},
		genai.Text(parserUserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	text := flattenResponse(resp)
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", fmt.Errorf("model response indicates refusal")
		}
	}
	if text == "" {
		slog.Warn("no text in model response, treating as empty page", "page", pagePath)
	}
	return text, nil
}

// flattenResponse concatenates the text parts of a model response and trims
// any surrounding markdown fence.
func flattenResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimPrefix(out, "```markdown")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
