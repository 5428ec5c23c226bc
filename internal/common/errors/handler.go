package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the job error handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns registration errors into thrown BPMN errors.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError throws err as a BPMN error on the job. Nothing is retried by
// the engine; a failed registration must be resubmitted explicitly.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("Registration job failed", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"jobType":            job.GetType(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"errorCode":          string(stdErr.Code),
		"bpmnErrorCode":      bpmnErr.Code,
		"errorCategory":      GetErrorCategory(stdErr.Code),
		"details":            stdErr.Details,
	})

	cmd := client.NewThrowErrorCommand().
		JobKey(job.GetKey()).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	varsJSON, varErr := json.Marshal(bpmnErr.ToErrorVariables())
	if varErr != nil {
		h.logger.Error("Failed to attach error variables", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  varErr.Error(),
		})
		_, sendErr := cmd.Send(ctx)
		return sendErr
	}

	withVars, varErr := cmd.VariablesFromString(string(varsJSON))
	if varErr != nil {
		_, sendErr := cmd.Send(ctx)
		return sendErr
	}

	_, sendErr := withVars.Send(ctx)
	return sendErr
}
