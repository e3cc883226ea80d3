// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// BPMNError represents an error thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return "BPMNError[" + e.Code + "]: " + e.Message
}

// ToErrorVariables returns a map suitable for Camunda job variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ConvertToBPMNError converts a StandardError to a BPMNError.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	vars := map[string]interface{}{
		"errorCategory": GetErrorCategory(stdErr.Code),
		"timestamp":     stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}
	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		ErrorVariables: vars,
	}
}

// Logger is the subset of logging the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler converts job failures into Zeebe commands. The assistant does not
// retry inside the core, so retryable errors fail the job with the engine's remaining
// retries and everything else is thrown as a BPMN error.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError handles any error in a worker job.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        bpmnErr.Code,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	varsJSON, _ := json.Marshal(bpmnErr.ToErrorVariables())

	if stdErr.Retryable && job.Retries > 0 {
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(job.Retries - 1).
			ErrorMessage(bpmnErr.Code + ": " + bpmnErr.Message)
		if withVars, verr := cmd.VariablesFromString(string(varsJSON)); verr == nil {
			_, _ = withVars.Send(ctx)
			return
		}
		_, _ = cmd.Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)
	if withVars, verr := cmd.VariablesFromString(string(varsJSON)); verr == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}
