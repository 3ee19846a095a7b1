package services

import (
  "context"
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/stretchr/testify/require"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

func TestLLMClient_SendTurn(t *testing.T) {
  var gotBody map[string]interface{}
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    require.Equal(t, "/chat/completions", r.URL.Path)
    require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
    require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
    _ = json.NewEncoder(w).Encode(map[string]interface{}{
      "choices": []map[string]interface{}{
        {"message": map[string]string{"role": "assistant", "content": "hello back"}},
      },
    })
  }))
  defer srv.Close()

  t.Setenv("LLM_API_URL", srv.URL)
  t.Setenv("LLM_API_KEY", "key-123")
  t.Setenv("LLM_MODEL", "test-model")

  client, err := NewLLMClient(logger.NewNop())
  require.NoError(t, err)

  history := []ModelMessage{
    {Role: wireRoleSystem, Text: "be helpful"},
    {Role: types.RoleUser, Text: "hi"},
    {Role: types.RoleModel, Text: "hello"},
  }
  reply, err := client.SendTurn(context.Background(), history, "how are you", []byte{0x01, 0x02})
  require.NoError(t, err)
  require.Equal(t, "hello back", reply)

  require.Equal(t, "test-model", gotBody["model"])
  msgs := gotBody["messages"].([]interface{})
  require.Len(t, msgs, 4)

  // Domain roles map onto wire roles.
  require.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
  require.Equal(t, "user", msgs[1].(map[string]interface{})["role"])
  require.Equal(t, "assistant", msgs[2].(map[string]interface{})["role"])

  // The image turn becomes multi-part content with an inline data URL.
  last := msgs[3].(map[string]interface{})
  parts := last["content"].([]interface{})
  require.Len(t, parts, 2)
  imagePart := parts[1].(map[string]interface{})
  require.Equal(t, "image_url", imagePart["type"])
  url := imagePart["image_url"].(map[string]interface{})["url"].(string)
  require.Contains(t, url, "data:image/png;base64,")
}

func TestLLMClient_NonOKStatusIsAnError(t *testing.T) {
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    http.Error(w, "quota exceeded", http.StatusTooManyRequests)
  }))
  defer srv.Close()

  t.Setenv("LLM_API_URL", srv.URL)
  t.Setenv("LLM_API_KEY", "key-123")

  client, err := NewLLMClient(logger.NewNop())
  require.NoError(t, err)

  _, err = client.SendTurn(context.Background(), nil, "hi", nil)
  require.ErrorIs(t, err, apperrors.ErrModelUnavailable)
}

func TestNewLLMClient_RequiresBaseURL(t *testing.T) {
  t.Setenv("LLM_API_URL", "")
  _, err := NewLLMClient(logger.NewNop())
  require.Error(t, err)
}
