// internal/resume/chunker.go
package resume

import (
	"errors"
	"strings"

	"jobhunt-pipeline/internal/models"
)

var (
	ErrEmptyResume = errors.New("EMPTY_RESUME")
)

// Chunker splits resume text into retrievable units. Chunking is fully
// deterministic: the same text always yields the same boundaries, which the
// scoring layer relies on for reproducible results.
type Chunker struct {
	maxChars int
	minChars int
}

type Config struct {
	MaxChars int
	MinChars int
}

func NewChunker(cfg Config) *Chunker {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 500
	}
	minChars := cfg.MinChars
	if minChars <= 0 {
		minChars = 40
	}
	if minChars > maxChars {
		minChars = maxChars / 2
	}
	return &Chunker{maxChars: maxChars, minChars: minChars}
}

// sectionHeaders maps lowercase header keywords to section labels. A line
// consisting (mostly) of one of these keywords starts a new section.
var sectionHeaders = map[string]string{
	"summary":             models.SectionSummary,
	"profile":             models.SectionSummary,
	"objective":           models.SectionSummary,
	"experience":          models.SectionExperience,
	"work experience":     models.SectionExperience,
	"employment":          models.SectionExperience,
	"employment history":  models.SectionExperience,
	"skills":              models.SectionSkills,
	"technical skills":    models.SectionSkills,
	"technologies":        models.SectionSkills,
	"education":           models.SectionEducation,
	"certifications":      models.SectionEducation,
	"projects":            models.SectionProjects,
	"personal projects":   models.SectionProjects,
	"publications":        models.SectionProjects,
}

// Chunk splits the resume into ordered chunks without embeddings. Boundaries
// prefer section headers, then sentence ends; no chunk exceeds the configured
// character budget and fragments below the minimum are merged forward.
func (c *Chunker) Chunk(text string) ([]models.ResumeChunk, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResume
	}

	sections := splitSections(text)

	var chunks []models.ResumeChunk
	for _, sec := range sections {
		for _, span := range c.splitSpans(sec.body) {
			chunks = append(chunks, models.ResumeChunk{
				Index:   len(chunks),
				Section: sec.label,
				Text:    span,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, ErrEmptyResume
	}
	return chunks, nil
}

type section struct {
	label string
	body  string
}

func splitSections(text string) []section {
	lines := strings.Split(text, "\n")
	current := section{label: models.SectionSummary}
	var out []section
	var buf []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" {
			current.body = body
			out = append(out, current)
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if label, ok := headerLabel(line); ok {
			flush()
			current = section{label: label}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return out
}

// headerLabel recognizes a standalone section header line.
func headerLabel(line string) (string, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	trimmed = strings.Trim(trimmed, ":#*-= \t")
	if trimmed == "" || len(trimmed) > 40 {
		return "", false
	}
	label, ok := sectionHeaders[trimmed]
	return label, ok
}

// splitSpans cuts a section body into spans within the character budget,
// breaking at sentence boundaries where possible.
func (c *Chunker) splitSpans(body string) []string {
	sentences := splitSentences(body)

	var spans []string
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+1+len(s) > c.maxChars {
			spans = append(spans, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		// A single sentence over budget is cut hard at the budget.
		for len(s) > c.maxChars {
			cut := s[:c.maxChars]
			if cur.Len() > 0 {
				spans = append(spans, cur.String())
				cur.Reset()
			}
			spans = append(spans, cut)
			s = s[c.maxChars:]
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		spans = append(spans, cur.String())
	}

	return c.mergeSmall(spans)
}

// mergeSmall folds fragments below the minimum size into their neighbor so
// single-word chunks never reach the index.
func (c *Chunker) mergeSmall(spans []string) []string {
	if len(spans) <= 1 {
		return spans
	}
	var out []string
	for _, s := range spans {
		if len(out) > 0 && (len(s) < c.minChars || len(out[len(out)-1]) < c.minChars) &&
			len(out[len(out)-1])+1+len(s) <= c.maxChars {
			out[len(out)-1] = out[len(out)-1] + " " + s
			continue
		}
		out = append(out, s)
	}
	return out
}

func splitSentences(body string) []string {
	var sentences []string
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}

	for _, r := range body {
		switch r {
		case '\n':
			flush()
		case '.', '!', '?':
			cur.WriteRune(r)
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return sentences
}
