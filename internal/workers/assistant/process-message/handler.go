// internal/workers/assistant/process-message/handler.go
package processmessage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"banking-assistant/internal/common/config"
	"banking-assistant/internal/common/errors"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/metrics"
	"banking-assistant/internal/common/validation"
	"banking-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "process-banking-message"

var jobSchema = validation.MustCompile("process-banking-message input", inputSchema)

// Processor answers one customer message.
type Processor interface {
	ProcessMessage(ctx context.Context, customerID, correlationID, text string) (*models.AssistantResponse, error)
}

type Handler struct {
	config    *Config
	processor Processor
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Processor    Processor
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Processor == nil {
		return nil, fmt.Errorf("processor is required for %s", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json", "stdout")
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:    cfg,
		processor: opts.Processor,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}, nil
}

// Config returns the effective worker configuration.
func (h *Handler) Config() *Config {
	return h.config
}

// Handle completes the job with the assistant reply. Only input errors are thrown
// as BPMN errors; the pipeline itself never fails a job.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		return h.failJob(ctx, client, job, err)
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		return h.failJob(ctx, client, job, err)
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		return h.failJob(ctx, client, job, errors.NewInternalError(err))
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.GetKey(), "error": err})
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":        job.GetKey(),
		"exit":          output.Exit,
		"correlationId": output.AssistantResponse.CorrelationID,
	})
	return nil
}

// Execute runs the assistant for one parsed job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	resp, err := h.processor.ProcessMessage(ctx, input.CustomerID, input.CorrelationID, input.Message)
	if err != nil {
		return nil, err
	}
	h.logger.Info("message processed", map[string]interface{}{
		"correlationId": resp.CorrelationID,
		"exit":          resp.Exit,
		"durationMs":    time.Since(start).Milliseconds(),
	})
	return &Output{AssistantResponse: resp, Exit: resp.Exit}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError("failed to parse job variables: " + err.Error())
	}

	if id, _ := variables["customerId"].(string); strings.TrimSpace(id) == "" {
		return nil, errors.NewMissingCustomerIDError()
	}
	if res := jobSchema.ValidateGo(variables); !res.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", res.GetErrorMessages()))
	}

	input := &Input{
		CustomerID: variables["customerId"].(string),
		Message:    variables["message"].(string),
	}
	if id, ok := variables["correlationId"].(string); ok {
		input.CorrelationID = id
	}
	return input, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
	return err
}
