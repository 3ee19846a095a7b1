package services

import (
  "bytes"
  "context"
  "encoding/base64"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "time"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/types"
  "github.com/loomchat-org/loomchat-backend/internal/utils"
)

// Wire roles for the chat-completions API.
const (
  wireRoleSystem    = "system"
  wireRoleUser      = "user"
  wireRoleAssistant = "assistant"
)

// ModelMessage is one entry of the live conversation context handed to the
// model capability. Image carries raw bytes; the transport encoding is the
// client's problem.
type ModelMessage struct {
  Role  string
  Text  string
  Image []byte
}

// ModelClient is the opaque generative-model capability: given the running
// context and a new user turn, produce a reply.
type ModelClient interface {
  SendTurn(ctx context.Context, history []ModelMessage, text string, image []byte) (string, error)
}

type requestContentPart struct {
  Type     string           `json:"type"`
  Text     string           `json:"text,omitempty"`
  ImageURL *requestImageURL `json:"image_url,omitempty"`
}

type requestImageURL struct {
  URL string `json:"url"`
}

type requestMessage struct {
  Role    string      `json:"role"`
  Content interface{} `json:"content"`
}

type chatCompletionRequest struct {
  Model    string           `json:"model"`
  Messages []requestMessage `json:"messages"`
}

type responseMessage struct {
  Role    string `json:"role"`
  Content string `json:"content,omitempty"`
}

type chatChoice struct {
  Index        uint32          `json:"index"`
  Message      responseMessage `json:"message"`
  FinishReason string          `json:"finish_reason"`
}

type chatCompletionResponse struct {
  ID      string       `json:"id"`
  Object  string       `json:"object"`
  Created uint64       `json:"created"`
  Model   string       `json:"model"`
  Choices []chatChoice `json:"choices"`
}

type llmClient struct {
  log     *logger.Logger
  client  *http.Client
  baseURL string
  apiKey  string
  model   string
}

func NewLLMClient(log *logger.Logger) (ModelClient, error) {
  serviceLog := log.With("service", "LLMClient")
  baseURL := utils.GetEnv("LLM_API_URL", "", log)
  if baseURL == "" {
    return nil, fmt.Errorf("missing LLM_API_URL environment variable")
  }
  apiKey := utils.GetEnv("LLM_API_KEY", "", log)
  if apiKey == "" {
    serviceLog.Warn("LLM_API_KEY not set; calls might fail or be unauthorized")
  }
  model := utils.GetEnv("LLM_MODEL", "deepseek/deepseek-v3", log)
  httpClient := &http.Client{
    Timeout: 60 * time.Second,
  }
  return &llmClient{
    log:     serviceLog,
    client:  httpClient,
    baseURL: baseURL,
    apiKey:  apiKey,
    model:   model,
  }, nil
}

func (lc *llmClient) SendTurn(ctx context.Context, history []ModelMessage, text string, image []byte) (string, error) {
  msgs := make([]requestMessage, 0, len(history)+1)
  for _, m := range history {
    msgs = append(msgs, buildRequestMessage(m.Role, m.Text, m.Image))
  }
  msgs = append(msgs, buildRequestMessage(types.RoleUser, text, image))

  request := chatCompletionRequest{
    Model:    lc.model,
    Messages: msgs,
  }
  jsonBody, err := json.Marshal(request)
  if err != nil {
    return "", fmt.Errorf("failed to marshal request body: %w", err)
  }

  url := fmt.Sprintf("%s/chat/completions", lc.baseURL)
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
  if err != nil {
    return "", fmt.Errorf("failed to create request: %w", err)
  }
  req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", lc.apiKey))
  req.Header.Set("Content-Type", "application/json")

  resp, err := lc.client.Do(req)
  if err != nil {
    lc.log.Warn("failed to call model endpoint", "error", err)
    return "", fmt.Errorf("%w: %v", apperrors.ErrModelUnavailable, err)
  }
  defer resp.Body.Close()

  if resp.StatusCode != http.StatusOK {
    bodyBytes, _ := io.ReadAll(resp.Body)
    lc.log.Warn("model endpoint responded with non-200", "statusCode", resp.StatusCode, "body", string(bodyBytes))
    return "", fmt.Errorf("%w: status %d: %s", apperrors.ErrModelUnavailable, resp.StatusCode, string(bodyBytes))
  }
  body, err := io.ReadAll(resp.Body)
  if err != nil {
    return "", fmt.Errorf("failed to read response body: %w", err)
  }
  var response chatCompletionResponse
  if err := json.Unmarshal(body, &response); err != nil {
    return "", fmt.Errorf("failed to unmarshal response: %w", err)
  }
  if len(response.Choices) == 0 {
    return "", fmt.Errorf("model response contained no choices")
  }
  return response.Choices[0].Message.Content, nil
}

// buildRequestMessage maps domain roles onto the wire roles and re-encodes
// the optional image as an inline data URL, the assumed media type being PNG.
func buildRequestMessage(role, text string, image []byte) requestMessage {
  wireRole := role
  switch role {
  case types.RoleUser:
    wireRole = wireRoleUser
  case types.RoleModel:
    wireRole = wireRoleAssistant
  }
  if len(image) == 0 {
    return requestMessage{Role: wireRole, Content: text}
  }
  parts := []requestContentPart{
    {Type: "text", Text: text},
    {
      Type: "image_url",
      ImageURL: &requestImageURL{
        URL: fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(image)),
      },
    },
  }
  return requestMessage{Role: wireRole, Content: parts}
}
