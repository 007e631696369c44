package controller

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/service"
)

type BillingController struct {
	BillingService *service.BillingService
	Log            *zap.Logger
}

func (c *BillingController) CreateAdvertiser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name" validate:"required,max=200"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	a, err := c.BillingService.CreateAdvertiser(r.Context(), body.Name)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (c *BillingController) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	a, err := c.BillingService.GetBalance(r.Context(), id)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type topUpRequest struct {
	Amount decimal.Decimal      `json:"amount"`
	Method string               `json:"method" validate:"required,oneof=card bank_transfer"`
	Card   *service.CardDetails `json:"card" validate:"required_if=Method card"`
	Bank   *service.BankDetails `json:"bank" validate:"required_if=Method bank_transfer"`
}

// TopUp runs the payment and credits the balance. A declined payment answers 402
// with the failed transaction so the client can show why.
func (c *BillingController) TopUp(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body topUpRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	res, err := c.BillingService.TopUp(r.Context(), service.PaymentRequest{
		AdvertiserID: id,
		Amount:       body.Amount,
		Method:       body.Method,
		Card:         body.Card,
		Bank:         body.Bank,
	})
	if err != nil {
		if res != nil && res.Transaction != nil {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":       err.Error(),
				"transaction": res.Transaction,
			})
			return
		}
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *BillingController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	q := r.URL.Query()
	list, pagination, err := c.BillingService.ListTransactions(r.Context(), service.ListTransactionsInput{
		AdvertiserID: id,
		Type:         q.Get("type"),
		Status:       q.Get("status"),
		From:         from,
		To:           to,
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 20),
	})
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": pagination,
	})
}

func (c *BillingController) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "advertiserID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	s, err := c.BillingService.Summary(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
