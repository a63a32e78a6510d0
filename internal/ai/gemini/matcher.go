package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength  = 200
	defaultMaxInputChars = 2000
	fallbackScore        = 50
	unknownID            = "unknown"

	scoringSystemPrompt = "You are a helpful assistant that always responds with valid JSON. Never refuse to provide an analysis."
)

var (
	placeholderStrengths = []string{"Analysis in progress"}
	placeholderGaps      = []string{"More information needed"}
	placeholderInsights  = []string{"Review candidate profile"}
)

// Matcher scores a résumé against a job description through a Generator.
// Failures never reach the caller: a neutral fallback score is returned instead.
type Matcher struct {
	generator     ai.Generator
	sampling      ai.Sampling
	maxInputChars int
	maxLogLen     int
	logger        *zap.Logger
}

func NewMatcher(generator ai.Generator, sampling ai.Sampling, maxInputChars, maxLogLength int, logger *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator:     generator,
		sampling:      sampling,
		maxInputChars: maxInputChars,
		maxLogLen:     maxLogLength,
		logger:        logger,
	}
}

func (m *Matcher) Score(ctx context.Context, resumeText, jobDescriptionText, resumeID, jobDescriptionID string) *ai.MatchScore {
	if strings.TrimSpace(resumeID) == "" {
		resumeID = unknownID
	}
	if strings.TrimSpace(jobDescriptionID) == "" {
		jobDescriptionID = unknownID
	}

	score, err := m.evaluate(ctx, resumeText, jobDescriptionText)
	if err != nil {
		m.logger.Warn("match scoring failed, returning fallback score",
			zap.String("resume_id", resumeID),
			zap.String("job_description_id", jobDescriptionID),
			zap.String("error_kind", string(apperror.KindOf(err))),
			zap.Error(err),
		)
		score = fallback()
	}

	score.ResumeID = resumeID
	score.JobDescriptionID = jobDescriptionID
	return score
}

func (m *Matcher) evaluate(ctx context.Context, resumeText, jobDescriptionText string) (*ai.MatchScore, error) {
	if m.generator == nil {
		return nil, apperror.New(apperror.KindGeneration, "generator is not configured")
	}

	prompt := buildPrompt(
		utils.TruncateRunes(jobDescriptionText, m.maxInputChars),
		utils.TruncateRunes(resumeText, m.maxInputChars),
	)

	m.logger.Debug("match score request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: scoringSystemPrompt},
		{Role: ai.RoleUser, Content: prompt},
	}, m.sampling)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGeneration, "failed to generate match score", err)
	}

	m.logger.Debug("match score response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	return parseResponse(raw)
}

func buildPrompt(jobDescription, resume string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "JOB DESCRIPTION:\n{{JOB_DESCRIPTION}}\n\nRESUME:\n{{RESUME}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{JOB_DESCRIPTION}}", jobDescription)
	prompt = strings.ReplaceAll(prompt, "{{RESUME}}", resume)
	return prompt
}

func fallback() *ai.MatchScore {
	return &ai.MatchScore{
		Score:     fallbackScore,
		Strengths: []string{"Unable to analyze - please try again"},
		Gaps:      []string{"Analysis failed - check data format"},
		Insights:  []string{"System error - contact support"},
		Fallback:  true,
	}
}

// parseResponse treats raw as untrusted: strict JSON first, then the first
// balanced object found in the text, then a shape check on every field.
func parseResponse(raw string) (*ai.MatchScore, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindParse, "failed to parse match score", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return nil, apperror.New(apperror.KindParse, "match score is missing or not numeric")
	}

	return &ai.MatchScore{
		Score:     math.Min(100, math.Max(0, score)),
		Strengths: stringsOr(data["strengths"], placeholderStrengths),
		Gaps:      stringsOr(data["gaps"], placeholderGaps),
		Insights:  stringsOr(data["insights"], placeholderInsights),
	}, nil
}

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil && data != nil {
		return data, nil
	}

	region, ok := firstObject(raw)
	if !ok {
		return nil, errors.New("no json object found in response")
	}

	if err := json.Unmarshal([]byte(region), &data); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if data == nil {
		return nil, errors.New("json object is null")
	}

	return data, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// firstObject returns the first brace-balanced region of s, ignoring braces
// inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start != -1 {
		depth := 0
		inString := false
		escaped := false

		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}

			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}

		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	return "", false
}

func stringsOr(v any, placeholder []string) []string {
	items, ok := v.([]any)
	if !ok {
		return append([]string(nil), placeholder...)
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return append([]string(nil), placeholder...)
	}
	return result
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
