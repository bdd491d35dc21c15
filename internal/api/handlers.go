// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/validation"
	"assignment-service/internal/webhook"
)

var manualInviteSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"developerId":   {Type: "string", MinLength: intPtr(1)},
		"clientMessage": {Type: "string"},
	},
	Required: []string{"developerId"},
}

var respondSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"actingUserId": {Type: "string", MinLength: intPtr(1)},
	},
	Required: []string{"actingUserId"},
}

var webhookSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"messageId": {Type: "string", MinLength: intPtr(1)},
		"from":      {Type: "string", MinLength: intPtr(1)},
		"text":      {Type: "string"},
	},
	Required: []string{"messageId", "from"},
}

func intPtr(v int) *int { return &v }

func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	ctx := r.Context()

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	decision, err := s.billing.CanCreateProject(ctx, project.ClientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !decision.Allowed {
		s.writeError(w, errors.NewQuotaExceededError(project.ClientID, decision.Reason))
		return
	}

	batchID, err := s.batches.Generate(ctx, projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.billing.IncrementUsage(ctx, project.ClientID); err != nil {
		s.logger.Warn("billing usage increment failed", map[string]interface{}{
			"client_id": project.ClientID,
			"batch_id":  batchID,
			"error":     err.Error(),
		})
	}

	writeJSON(w, http.StatusCreated, map[string]string{"batchId": batchID})
}

func (s *Server) handleManualInvite(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")

	body, err := decodeBody(r, manualInviteSchema)
	if err != nil {
		s.writeError(w, err)
		return
	}
	developerID := body["developerId"].(string)
	clientMessage, _ := body["clientMessage"].(string)

	batchID, err := s.batches.GenerateManualInvite(r.Context(), projectID, developerID, clientMessage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"batchId": batchID})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	candidateID := r.PathValue("candidateId")

	body, err := decodeBody(r, respondSchema)
	if err != nil {
		s.writeError(w, err)
		return
	}
	actingUserID := body["actingUserId"].(string)

	result, err := s.responses.Accept(r.Context(), candidateID, actingUserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"candidateId":     result.Candidate.ID,
		"projectSnapshot": result.Project,
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	candidateID := r.PathValue("candidateId")

	body, err := decodeBody(r, respondSchema)
	if err != nil {
		s.writeError(w, err)
		return
	}
	actingUserID := body["actingUserId"].(string)

	if err := s.responses.Reject(r.Context(), candidateID, actingUserID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r, webhookSchema)
	if err != nil {
		s.writeError(w, err)
		return
	}

	msg := &webhook.Message{
		MessageID: body["messageId"].(string),
		From:      body["from"].(string),
	}
	if text, ok := body["text"].(string); ok {
		msg.Text = text
	}

	result, err := s.webhooks.Handle(r.Context(), msg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if s.sweepToken == "" || token != s.sweepToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	expired, err := s.sweeper.SweepOnce(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// decodeBody parses and validates a JSON request body.
func decodeBody(r *http.Request, schema validation.JSONSchema) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.NewValidationFailedError("invalid JSON body")
	}
	if result := validation.ValidateInput(body, schema); !result.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return body, nil
}

// writeError maps the error taxonomy to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeAlreadyResponded:
		status = http.StatusConflict
	case errors.ErrCodeExpired:
		status = http.StatusGone
	case errors.ErrCodeQuotaExceeded:
		status = http.StatusPaymentRequired
	case errors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case errors.ErrCodePersistenceConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		if code == "" {
			code = "INTERNAL"
		}
		s.logger.Error("request failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
