// internal/workers/assistant/process-message/models.go
package processmessage

import "banking-assistant/internal/models"

type Input struct {
	CustomerID    string `json:"customerId"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type Output struct {
	AssistantResponse *models.AssistantResponse `json:"assistantResponse"`
	Exit              string                    `json:"assistantExit"`
}

const inputSchema = `{
  "type": "object",
  "required": ["customerId", "message"],
  "properties": {
    "customerId": {"type": "string", "minLength": 1},
    "message": {"type": "string", "minLength": 1, "maxLength": 4000},
    "correlationId": {"type": "string"}
  }
}`
