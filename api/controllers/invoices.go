package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline-hq/stockline-backend/api/responses"
	"github.com/stockline-hq/stockline-backend/api/validators"
	"github.com/stockline-hq/stockline-backend/internal/invoices"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
)

type invoiceLineRequest struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	Description string          `json:"description" validate:"required,min=1,max=255"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
}

type invoiceCreateRequest struct {
	InvoiceNumber  string               `json:"invoice_number" validate:"required,min=1,max=64"`
	CompanyID      uuid.UUID            `json:"company_id" validate:"required"`
	InvoiceDate    time.Time            `json:"invoice_date" validate:"required"`
	DueDate        *time.Time           `json:"due_date,omitempty"`
	Received       bool                 `json:"received"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	Notes          *string              `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Lines          []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (req invoiceCreateRequest) toInput(actor uuid.UUID) invoices.CreateInvoiceInput {
	lines := make([]invoices.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, invoices.LineInput{
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxPercent:  line.TaxPercent,
		})
	}
	return invoices.CreateInvoiceInput{
		InvoiceNumber:  req.InvoiceNumber,
		CompanyID:      req.CompanyID,
		InvoiceDate:    req.InvoiceDate,
		DueDate:        req.DueDate,
		Received:       req.Received,
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
		Lines:          lines,
		ActorUserID:    actor,
	}
}

func InvoiceCreate(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload invoiceCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Create(r.Context(), payload.toInput(userID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, invoice)
	}
}

func InvoiceDetail(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

func InvoiceList(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var companyID uuid.UUID
		if raw := r.URL.Query().Get("company_id"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid company id"))
				return
			}
			companyID = parsed
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), companyID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// InvoiceReceive marks a draft invoice received and posts its stock.
func InvoiceReceive(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Receive(r.Context(), invoiceID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

type paymentCreateRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Mode        string          `json:"mode" validate:"required"`
	Reference   *string         `json:"reference,omitempty" validate:"omitempty,max=128"`
	Notes       *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
}

func InvoiceAddPayment(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mode, err := enums.ParsePaymentMode(payload.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment mode"))
			return
		}

		payment, err := svc.AddPayment(r.Context(), invoices.AddPaymentInput{
			InvoiceID:   invoiceID,
			Amount:      payload.Amount,
			PaymentDate: payload.PaymentDate,
			Mode:        mode,
			Reference:   payload.Reference,
			Notes:       payload.Notes,
			ActorUserID: userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func InvoiceDeletePayment(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeletePayment(r.Context(), invoiceID, paymentID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func InvoiceListPayments(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		if _, err := authedUserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, err := svc.ListPayments(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payments)
	}
}

func InvoiceCancel(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), invoiceID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
