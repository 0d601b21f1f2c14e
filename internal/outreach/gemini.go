// internal/outreach/gemini.go
package outreach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

const defaultDraftModel = "gemini-2.5-flash"

// GeminiDrafter drafts cold-outreach messages and cover letters with the
// Gemini API.
type GeminiDrafter struct {
	client    *genai.Client
	modelName string
	logger    logger.Logger
}

func NewGeminiDrafter(ctx context.Context, apiKey, model string, log logger.Logger) (*GeminiDrafter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultDraftModel
	}

	return &GeminiDrafter{
		client:    client,
		modelName: model,
		logger:    log.WithFields(map[string]interface{}{"component": "outreach"}),
	}, nil
}

func (d *GeminiDrafter) Draft(ctx context.Context, job models.JobListing, resumeText string, score models.MatchScore) (*Artifact, error) {
	message, err := d.generate(ctx, outreachPrompt(job, resumeText, score))
	if err != nil {
		return nil, errors.NewOutreachFailedError(job.ID(), err)
	}

	coverLetter, err := d.generate(ctx, coverLetterPrompt(job, resumeText, score))
	if err != nil {
		return nil, errors.NewOutreachFailedError(job.ID(), err)
	}

	d.logger.Info("outreach drafted", map[string]interface{}{
		"jobId": job.ID(),
		"model": d.modelName,
	})

	return &Artifact{
		JobID:       job.ID(),
		Message:     message,
		CoverLetter: coverLetter,
		Model:       d.modelName,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (d *GeminiDrafter) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := d.client.Models.GenerateContent(ctx, d.modelName, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", fmt.Errorf("gemini api returned empty response")
	}
	return output, nil
}

func outreachPrompt(job models.JobListing, resumeText string, score models.MatchScore) string {
	var b strings.Builder
	b.WriteString("Write a short, specific cold-outreach message for this job application.\n")
	b.WriteString("Keep it under 150 words, reference concrete overlap, no generic filler.\n\n")
	fmt.Fprintf(&b, "Job: %s at %s (%s)\n", job.Title, job.Company, job.Location)
	fmt.Fprintf(&b, "Job description:\n%s\n\n", job.Description)
	fmt.Fprintf(&b, "Match rationale: %s\n", score.Rationale)
	if len(score.MatchedTags) > 0 {
		fmt.Fprintf(&b, "Emphasize: %s\n", strings.Join(score.MatchedTags, ", "))
	}
	fmt.Fprintf(&b, "\nCandidate resume:\n%s\n", resumeText)
	return b.String()
}

func coverLetterPrompt(job models.JobListing, resumeText string, score models.MatchScore) string {
	var b strings.Builder
	b.WriteString("Write a one-page cover letter for this job application.\n")
	b.WriteString("Match the tone of the posting, lead with the strongest overlap.\n\n")
	fmt.Fprintf(&b, "Job: %s at %s\n", job.Title, job.Company)
	fmt.Fprintf(&b, "Job description:\n%s\n\n", job.Description)
	fmt.Fprintf(&b, "Match rationale: %s\n", score.Rationale)
	if len(score.MissingTags) > 0 {
		fmt.Fprintf(&b, "Do not claim experience with: %s\n", strings.Join(score.MissingTags, ", "))
	}
	fmt.Fprintf(&b, "\nCandidate resume:\n%s\n", resumeText)
	return b.String()
}
