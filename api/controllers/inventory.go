package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stockline-hq/stockline-backend/api/responses"
	"github.com/stockline-hq/stockline-backend/api/validators"
	"github.com/stockline-hq/stockline-backend/internal/inventory"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
)

type inventoryAdjustRequest struct {
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	QuantityDelta int       `json:"quantity_delta" validate:"required"`
	Notes         *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// InventoryAdjust applies a manual stock correction. Unlike webhook-driven
// changes this fails outright when the delta would drive stock negative.
func InventoryAdjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload inventoryAdjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			ProductID:     payload.ProductID,
			QuantityDelta: payload.QuantityDelta,
			Notes:         payload.Notes,
			ActorUserID:   userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// InventoryTransactions lists the most recent ledger entries for a product.
func InventoryTransactions(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactions, err := svc.ListTransactions(r.Context(), productID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactions)
	}
}
