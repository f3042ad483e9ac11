package ingestion

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/cruncher/internal/api/v1"
	httperr "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgEnqueueFailed   = "Failed to enqueue crunch request"
	msgMessageTooLarge = "Crunch message exceeds the queue message limit"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// EnqueueHandler accepts a crunch request and publishes it to the work queue.
func (s *Service) EnqueueHandler(c *gin.Context) {
	req, err := s.parseRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	scope, body, ierr := s.buildMessage(req)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.publish(c.Request.Context(), scope, body, req.Notify); err != nil {
		writeError(c, err)
		return
	}

	slog.Info("[Ingestion] Crunch request enqueued", "scope", scope, "body", string(body), "notify", req.Notify)
	c.JSON(http.StatusAccepted, v1.CrunchResponse{Status: "accepted", Scope: string(scope), ID: req.ID})
}

// FlushHandler flushes every pending batch of this worker without waiting for its timer.
func (s *Service) FlushHandler(c *gin.Context) {
	n := s.flusher.Flush(work.TriggerManual)
	slog.Info("[Ingestion] Manual flush", "partitions_flushed", n)
	c.JSON(http.StatusAccepted, v1.FlushResponse{Status: "flushed", Partitions: n})
}

// parseRequest reads the raw request body under the size limit and binds it.
func (s *Service) parseRequest(c *gin.Context) (*v1.CrunchRequest, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var req v1.CrunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	return &req, nil
}

// buildMessage renders the request and runs it through the same parser the
// consumer uses, so nothing is published that the worker would reject.
func (s *Service) buildMessage(req *v1.CrunchRequest) (work.Scope, []byte, *ingestionError) {
	scope, body, err := req.Message()
	if err != nil {
		return "", nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRequestError,
			message:    err.Error(),
		}
	}

	if s.maxMessageBytes > 0 && len(body) > s.maxMessageBytes {
		return "", nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidRequestError,
			message:    msgMessageTooLarge,
			details: map[string]interface{}{
				"max_message_bytes": s.maxMessageBytes,
			},
		}
	}

	if _, err := work.ParseMessage(0, body, string(scope), nil, s.maxMessageBytes); err != nil {
		return "", nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRequestError,
			message:    err.Error(),
		}
	}
	return scope, body, nil
}

func (s *Service) publish(ctx context.Context, scope work.Scope, body []byte, notify string) *ingestionError {
	if err := s.publisher.Enqueue(ctx, scope, body, notify); err != nil {
		slog.Error("[Ingestion] Failed to enqueue crunch request", "error", err, "scope", scope)
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpQueueUnavailableError,
			message:    msgEnqueueFailed,
		}
	}
	return nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
