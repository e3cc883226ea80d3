// internal/common/validation/schemas.go
package validation

// ProviderEnvelopeSchema is the shape every banking provider document shares.
const ProviderEnvelopeSchema = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {"type": "object"},
    "metadata": {
      "type": "object",
      "properties": {
        "schemaVersion": {"type": "string"},
        "currencyPrecision": {
          "type": "object",
          "additionalProperties": {"type": "integer", "minimum": 0}
        },
        "disclaimers": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

// IntentResponseSchema describes the intent resolver reply.
const IntentResponseSchema = `{
  "type": "object",
  "required": ["intents"],
  "properties": {
    "intents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["domain"],
        "properties": {
          "domain": {
            "type": "string",
            "enum": ["CURRENT_ACCOUNTS", "FOREIGN_CURRENT_ACCOUNTS", "CREDIT_CARDS", "LOANS",
                     "MORTGAGES", "DEPOSITS", "SECURITIES", "UNKNOWN"]
          },
          "metric": {"type": "string"},
          "timeRangeHint": {"type": ["string", "null"]},
          "entityHints": {"type": ["object", "null"]},
          "parameters": {"type": ["object", "null"]}
        }
      }
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "needsClarification": {"type": "boolean"},
    "clarificationNeeded": {"type": ["string", "null"]},
    "isFollowUp": {"type": "boolean"}
  }
}`

// TimeRangeResponseSchema describes the time-range escalation reply.
const TimeRangeResponseSchema = `{
  "type": "object",
  "required": ["fromDate", "toDate"],
  "properties": {
    "fromDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "toDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"}
  }
}`

// MessageRequestSchema validates the HTTP message body.
const MessageRequestSchema = `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {"type": "string", "minLength": 1, "maxLength": 4000},
    "correlationId": {"type": "string", "maxLength": 128}
  },
  "additionalProperties": false
}`
