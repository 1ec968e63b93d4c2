package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/stockline-hq/stockline-backend/api/responses"
	"github.com/stockline-hq/stockline-backend/api/validators"
	"github.com/stockline-hq/stockline-backend/internal/agentactions"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
)

type agentActionCreateRequest struct {
	AgentType string          `json:"agent_type" validate:"required"`
	Plan      json.RawMessage `json:"plan" validate:"required"`
	Rationale string          `json:"rationale" validate:"max=2000"`
}

// AgentActionCreate accepts a recommendation from the reasoning pipeline and
// queues it for human approval.
func AgentActionCreate(svc agentactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent action service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload agentActionCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agentType, err := enums.ParseAgentType(payload.AgentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid agent type"))
			return
		}

		action, err := svc.Create(r.Context(), agentactions.CreateActionInput{
			AgentType: agentType,
			Plan:      payload.Plan,
			Rationale: payload.Rationale,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, action)
	}
}

func AgentActionList(svc agentactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent action service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actions, err := svc.ListPending(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, actions)
	}
}

func AgentActionDetail(svc agentactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent action service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actionID, err := pathUUID(r, "actionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := svc.Get(r.Context(), actionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, action)
	}
}

// AgentActionApprove executes the action's plan. Exactly one of the racing
// approvals wins; the rest see a conflict.
func AgentActionApprove(svc agentactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent action service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actionID, err := pathUUID(r, "actionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Approve(r.Context(), actionID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"action": result.Action}
		if result.InvoiceID != nil {
			body["invoice_id"] = result.InvoiceID
		}
		responses.WriteSuccess(w, body)
	}
}

func AgentActionDismiss(svc agentactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agent action service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actionID, err := pathUUID(r, "actionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Dismiss(r.Context(), actionID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
