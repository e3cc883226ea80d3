// internal/assistant/orchestrator/deps.go
package orchestrator

import (
	"context"

	"banking-assistant/internal/assistant/session"
	"banking-assistant/internal/integrations/genai"
	"banking-assistant/internal/models"
)

// SessionStore loads and atomically mutates session contexts.
type SessionStore interface {
	Load(ctx context.Context, customerID string) (*models.SessionContext, error)
	Update(ctx context.Context, customerID string, fn session.Mutation) (*models.SessionContext, error)
}

type IntentResolver interface {
	ResolveIntent(ctx context.Context, req genai.IntentRequest) (*models.IntentResolution, error)
}

// Drafter writes customer-facing text, for banking turns and for small talk.
type Drafter interface {
	Draft(ctx context.Context, req genai.DraftRequest) (*genai.Draft, error)
	Converse(ctx context.Context, req genai.ConverseRequest) (string, error)
}

type LanguageService interface {
	DetectLanguage(ctx context.Context, text string) (*genai.Detection, error)
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type Screener interface {
	Screen(ctx context.Context, text string) (*genai.Screening, error)
}
