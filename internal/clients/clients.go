package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ds124wfegd/notification-hub/internal/entity"
)

type UserClient interface {
	GetUser(ctx context.Context, userID string) (*entity.User, error)
	GetUsersByPreference(ctx context.Context, preference entity.Channel) ([]string, error)
}

type TemplateRenderer interface {
	Render(ctx context.Context, code, language string, variables map[string]interface{}) (*entity.RenderedTemplate, error)
}

// apiResponse is the wrapped envelope both collaborators answer with. The
// payload shape is enforced here at the boundary; ambiguity never reaches the
// delivery path.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func unwrap(body []byte) (json.RawMessage, error) {
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidResponse, err)
	}
	// A RawMessage holding the literal `null` is as empty as a missing field.
	if !envelope.Success || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		msg := envelope.Error
		if msg == "" {
			msg = envelope.Message
		}
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidResponse, msg)
	}
	return envelope.Data, nil
}

// HashVariables builds the cache-key fragment for a variable set: sorted
// key:value pairs, base64, truncated to 16 characters.
func HashVariables(variables map[string]interface{}) string {
	keys := make([]string, 0, len(variables))
	for key := range variables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s:%v", key, variables[key]))
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Join(pairs, "|")))
	if len(encoded) > 16 {
		return encoded[:16]
	}
	return encoded
}
