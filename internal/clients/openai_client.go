package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

const openAIRequestTimeout = 60 * time.Second

const openAIPrompt = `You are a sentiment classifier for employee and customer feedback.
Classify the overall polarity of the text the user sends.
Answer with a single JSON object and nothing else. It must match this JSON schema:
%s`

// OpenAIClassifier asks a chat model for a POSITIVE/NEGATIVE verdict.
type OpenAIClassifier struct {
	Client *openai.Client
	model  string
	prompt string
}

// NewOpenAIClassifier builds a classifier for model. Extra request options
// (base URL, retries) are passed through to the SDK.
func NewOpenAIClassifier(apiKey, model string, opts ...option.RequestOption) (*OpenAIClassifier, error) {
	schema, err := verdictSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build verdict schema: %w", err)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: openAIRequestTimeout}),
	}, opts...)

	slog.Info("[OpenAIClassifier] OpenAI client initialized",
		slog.String("model", model),
		slog.Duration("timeout", openAIRequestTimeout))

	return &OpenAIClassifier{
		Client: openai.NewClient(reqOpts...),
		model:  model,
		prompt: fmt.Sprintf(openAIPrompt, schema),
	}, nil
}

func verdictSchema() (string, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	b, err := reflector.Reflect(models.OpenAISentimentVerdict{}).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (o *OpenAIClassifier) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return sentiment.Prediction{}, sentiment.ErrBlankText
	}

	chatCompletion, err := o.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.prompt),
			openai.UserMessage(text),
		}),
		Model:       openai.F(openai.ChatModel(o.model)),
		Temperature: openai.Float(0),
	})
	if err != nil {
		slog.Warn("[OpenAIClassifier] OpenAI API call failed", slog.String("error", err.Error()))
		return sentiment.Prediction{}, fmt.Errorf("%w: %w", sentiment.ErrClassifierUnavailable, err)
	}

	if len(chatCompletion.Choices) == 0 {
		return sentiment.Prediction{}, fmt.Errorf("%w: no choices returned", sentiment.ErrMalformedClassifierOutput)
	}
	return parseVerdict(chatCompletion.Choices[0].Message.Content)
}

// parseVerdict reads the model answer, tolerating a fenced code block.
func parseVerdict(content string) (sentiment.Prediction, error) {
	raw := cleanOpenAIResponse(content)
	if raw == "" {
		return sentiment.Prediction{}, fmt.Errorf("%w: empty response", sentiment.ErrMalformedClassifierOutput)
	}

	var verdict models.OpenAISentimentVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return sentiment.Prediction{}, fmt.Errorf("%w: %w", sentiment.ErrMalformedClassifierOutput, err)
	}

	label, ok := sentiment.ParseLabel(verdict.Label)
	if !ok {
		return sentiment.Prediction{}, fmt.Errorf("%w: unexpected label %q", sentiment.ErrMalformedClassifierOutput, verdict.Label)
	}
	return sentiment.Prediction{Label: label, Confidence: verdict.Confidence}, nil
}

func cleanOpenAIResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	response = strings.ReplaceAll(response, "“", `"`)
	response = strings.ReplaceAll(response, "”", `"`)

	return strings.TrimSpace(response)
}

func (o *OpenAIClassifier) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := o.Classify(ctx, "ok")
	return err == nil
}
