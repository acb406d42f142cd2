package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"questloom/internal/logging"
)

// systemInstruction frames every narration call. Narration stays in second
// person; the structured envelope carries the bookkeeping.
const systemInstruction = `You are the narrator of a fantasy adventure. ` +
	`Write narration in second person ("you"), 2-4 sentences, under 400 characters. ` +
	`Never refer to the player in third person. ` +
	`Respond with a single JSON object: {"narration": string, ` +
	`"progress": {"completed": bool, "current_encounter": int}, ` +
	`"suggested_actions": [string], ` +
	`"causal_event": {"event": string, "cause": string, "consequence": string} | null, ` +
	`"new_threads": [{"id": string, "text": string, "kind": "clue"|"subplot"|"foreshadow"|"promise"|"mystery", "priority": int}], ` +
	`"resolved_threads": [string], ` +
	`"location_updates": [{"name": string, "status": "cleared"|"locked"|"unlocked"|"discovered"|"destroyed"|"threat"|"safe"}], ` +
	`"tension_delta": int}. ` +
	`Report a location_update whenever the narration changes an area's standing. ` +
	`Suggested actions are imperative phrases, never "you could/can/may" or questions.`

// GeminiGenerator implements Generator and Streamer against the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed narration generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate runs one structured narration call.
func (g *GeminiGenerator) Generate(ctx context.Context, sc *StructuredContext, opts Options) (*StructuredTurn, error) {
	prompt := buildPrompt(sc)
	timer := logging.StartTimer(logging.CategoryGenerator, "generate")
	defer timer.Stop()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config(opts))
	if err != nil {
		return nil, &Error{Reason: "transport", Err: err}
	}
	text := resp.Text()
	if text == "" {
		return nil, &Error{Reason: "empty"}
	}
	return ParseTurn(text)
}

// GenerateStream delivers cumulative narration fragments while the model
// produces the turn, then parses the terminal result. Callers must not
// commit state from partials.
func (g *GeminiGenerator) GenerateStream(ctx context.Context, sc *StructuredContext, opts Options, onPartial func(string)) (*StructuredTurn, error) {
	prompt := buildPrompt(sc)
	var full strings.Builder
	for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.config(opts)) {
		if err != nil {
			return nil, &Error{Reason: "transport", Err: err}
		}
		piece := chunk.Text()
		if piece == "" {
			continue
		}
		full.WriteString(piece)
		if onPartial != nil {
			// Best-effort peek at the narration accumulated so far.
			if n := peekNarration(full.String()); n != "" {
				onPartial(n)
			}
		}
	}
	if full.Len() == 0 {
		return nil, &Error{Reason: "empty"}
	}
	return ParseTurn(full.String())
}

func (g *GeminiGenerator) config(opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	return cfg
}

func buildPrompt(sc *StructuredContext) string {
	var b strings.Builder
	b.WriteString("STATE: ")
	if sc.Payload != nil {
		b.WriteString(sc.Payload.Encode())
	} else {
		b.WriteString("{}")
	}
	if sc.SceneFraming != "" {
		b.WriteString("\nSCENE: ")
		b.WriteString(sc.SceneFraming)
	}
	b.WriteString("\nPLAYER: ")
	b.WriteString(sc.PlayerAction)
	return b.String()
}

// ParseTurn decodes a model response into a StructuredTurn, tolerating
// markdown code fences. Shape violations come back as a schema Error.
func ParseTurn(text string) (*StructuredTurn, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var turn StructuredTurn
	if err := json.Unmarshal([]byte(cleaned), &turn); err != nil {
		return nil, &Error{Reason: "schema", Err: err}
	}
	if turn.Narration == "" {
		return nil, &Error{Reason: "schema", Err: fmt.Errorf("missing narration field")}
	}
	return &turn, nil
}

// peekNarration extracts the narration value from a possibly incomplete
// JSON fragment, for streaming display only.
func peekNarration(fragment string) string {
	idx := strings.Index(fragment, `"narration"`)
	if idx < 0 {
		return ""
	}
	rest := fragment[idx+len(`"narration"`):]
	start := strings.Index(rest, `"`)
	if start < 0 {
		return ""
	}
	rest = rest[start+1:]
	var b strings.Builder
	escaped := false
	for _, r := range rest {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
