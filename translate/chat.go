package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/minios-linux/loxml/worker"
)

// CommonLanguages is what AI providers report from Languages: they accept
// any language, so a practical set of UI locales is listed.
var CommonLanguages = []string{
	"ar", "bg", "cs", "da", "de", "el", "es", "et", "fa", "fi", "fr", "he",
	"hi", "hr", "hu", "id", "it", "ja", "kk", "ko", "lt", "lv", "nb", "nl",
	"pl", "pt", "pt-BR", "ro", "ru", "sk", "sl", "sr", "sv", "th", "tr", "uk",
	"vi", "zh-CN", "zh-TW",
}

// ResourceSystemPrompt is the system prompt for translating resource strings.
const ResourceSystemPrompt = `You are a professional translator specializing in software localization. You are translating UI strings extracted from XML resource files from {{sourceLang}} into {{targetLang}}.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for naturalness and fluency in {{targetLang}}, not word-for-word
- Use established software terminology in {{targetLang}}
- Keep the tone and intent of the source

TECHNICAL REQUIREMENTS:
- Return ONLY a JSON array of translated strings, one for each input entry, in the same order.
- Preserve format specifiers exactly as-is (%s, %d, %1$s, {0}, {name}, etc.).
- Preserve inline markup, leading/trailing whitespace and newlines.
- Keep brand names and proper nouns unchanged.
- Return ONLY the JSON array, no explanations or markdown code blocks.`

// defaultChatChunkSize keeps prompts small enough for reliable JSON output.
const defaultChatChunkSize = 50

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                  // Google Gemini generateContent
)

// Chat translates through a chat-style AI API. Each (language, chunk) pair
// is one request; requests run in parallel up to Options.MaxConcurrent and
// share one rate limit pause.
type Chat struct {
	prov   Provider
	format apiFormat
	opts   Options
	api    *caller
}

// NewChat creates an AI provider client using the given wire format.
func NewChat(prov Provider, opts Options, format apiFormat) *Chat {
	return &Chat{
		prov:   prov,
		format: format,
		opts:   opts,
		api:    newCaller(prov, opts.effectiveMaxRetries()),
	}
}

// Languages returns CommonLanguages.
func (c *Chat) Languages(ctx context.Context) ([]string, error) {
	return append([]string(nil), CommonLanguages...), nil
}

type chatTask struct {
	lang   string
	values []string
}

// Translate implements Translator.
func (c *Chat) Translate(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	result := newResult(req.To)
	values := req.Values()
	if len(values) == 0 {
		return result, nil
	}

	chunks := worker.Batch(values, c.opts.effectiveChunkSize(defaultChatChunkSize))
	var tasks []chatTask
	for _, lang := range req.To {
		for _, chunk := range chunks {
			tasks = append(tasks, chatTask{lang: lang, values: chunk})
		}
	}

	log.Debug().Str("provider", c.prov.Name).Str("model", c.prov.Model).Int("values", len(values)).Int("requests", len(tasks)).Msg("Requesting translations")

	pool := worker.NewPool(c.opts.effectiveMaxConcurrent(), func(ctx context.Context, t chatTask) ([]string, error) {
		return c.translateChunk(ctx, req.From, t.lang, t.values)
	})
	done := pool.Execute(ctx, tasks)
	if err := worker.FirstError(done); err != nil {
		return nil, err
	}

	// Tasks are ordered language-major, chunk-minor, so appending keeps
	// records in request value order.
	for _, task := range done {
		for i, translated := range task.Result {
			result[task.Input.lang] = append(result[task.Input.lang], Record{
				Source:     task.Input.values[i],
				Translated: translated,
			})
		}
	}
	return result, nil
}

func (c *Chat) translateChunk(ctx context.Context, from, to string, values []string) ([]string, error) {
	prompt := c.opts.SystemPrompt
	if prompt == "" {
		prompt = ResourceSystemPrompt
	}
	prompt = strings.ReplaceAll(prompt, "{{sourceLang}}", LanguageName(from))
	prompt = strings.ReplaceAll(prompt, "{{targetLang}}", LanguageName(to))

	var userMsg strings.Builder
	userMsg.WriteString("Translate these entries:\n\n")
	for i, v := range values {
		userMsg.WriteString(fmt.Sprintf("%d. %s\n", i+1, escapeForPrompt(v)))
	}
	userMsg.WriteString(fmt.Sprintf("\nReturn a JSON array with exactly %d translated strings.", len(values)))

	text, err := c.call(ctx, prompt, userMsg.String())
	if err != nil {
		return nil, err
	}

	translations, err := parseTranslations(text, len(values))
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrProviderRejected, c.prov.Name, to, err)
	}
	return translations, nil
}

// call sends one prompt and returns the response text.
func (c *Chat) call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	endpoint, headers, body, err := buildHTTPRequest(c.prov, systemPrompt, userPrompt, c.format)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	respBody, err := c.api.send(ctx, http.MethodPost, endpoint, headers, body)
	if err != nil {
		return "", err
	}

	text, err := extractResponseText(respBody)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProviderRejected, c.prov.Name, err)
	}
	return text, nil
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

// buildHTTPRequest constructs the endpoint, headers, and body for a chat provider.
func buildHTTPRequest(prov Provider, systemPrompt, userPrompt string, format apiFormat) (string, map[string]string, []byte, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	var (
		endpoint string
		body     []byte
		err      error
	)

	switch format {
	case formatGeminiNative:
		// Google AI: POST /v1beta/models/{model}:generateContent
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent",
			strings.TrimRight(prov.BaseURL, "/"), prov.Model)
		if prov.APIKey != "" {
			headers["x-goog-api-key"] = prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt, 0.3)

	default: // formatOpenAIChat
		endpoint = strings.TrimRight(prov.BaseURL, "/")
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			endpoint += "/chat/completions"
		}
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIChatRequest(prov.Model, systemPrompt, userPrompt, 0.3)
	}

	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// extractResponseText returns the text of an OpenAI chat or Gemini response.
func extractResponseText(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	if len(resp.Candidates) > 0 {
		var b strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
		return b.String(), nil
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseTranslations extracts a JSON array of exactly expected strings from
// the AI response text.
func parseTranslations(content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON array: %w\nResponse: %s", err, truncate(content, 300))
	}

	if len(translations) != expected {
		return nil, fmt.Errorf("got %d translations, expected %d", len(translations), expected)
	}
	return translations, nil
}

// escapeForPrompt prepares a string for inclusion in the AI prompt.
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return fmt.Sprintf(`"%s"`, s)
}

// LanguageName returns the native name of a language code ("ru" → "русский"),
// or the code itself when it cannot be parsed.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return code
}
