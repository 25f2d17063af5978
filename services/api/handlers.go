package api

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/labstack/echo/v4"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/services/builder"
	"github.com/runestake/settlement/services/settlement"
	"github.com/shopspring/decimal"
)

type buildRequest struct {
	Address    string `json:"address"`
	PubKey     string `json:"pubkey,omitempty"`
	Amount     string `json:"amount,omitempty"`
	FeeRate    *int64 `json:"fee_rate,omitempty"`
	ClaimRowID *int64 `json:"claim_row_id,omitempty"`
}

type buildResponse struct {
	Psbt         string              `json:"psbt"`
	TxID         string              `json:"txid"`
	Fee          int64               `json:"fee"`
	FeeRate      int64               `json:"fee_rate"`
	InputsToSign []builder.SignInput `json:"inputs_to_sign"`
	RowID        int64               `json:"row_id"`
	Amount       string              `json:"amount,omitempty"`
	StakedAmount string              `json:"staked_amount,omitempty"`
}

type confirmRequest struct {
	Psbt           string `json:"psbt"`
	RowExists      bool   `json:"row_exists"`
	ClaimRowID     *int64 `json:"claim_row_id,omitempty"`
	ExpectedAmount string `json:"expected_amount,omitempty"`
}

type earningsResponse struct {
	Realized    decimal.Decimal `json:"realized"`
	Unrealized  decimal.Decimal `json:"unrealized"`
	Total       decimal.Decimal `json:"total"`
	Invested    decimal.Decimal `json:"invested"`
	Percentage  decimal.Decimal `json:"percentage"`
	CurrentRate decimal.Decimal `json:"current_rate"`
}

type rateResponse struct {
	Block uint32          `json:"block"`
	Rate  decimal.Decimal `json:"rate"`
}

func operation(c echo.Context) (model.Operation, error) {
	op := model.Operation(c.Param("operation"))
	if !op.Valid() {
		return "", errors.NewNotFoundError("unknown operation %q", c.Param("operation"))
	}

	return op, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}

	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid amount %q", s, err)
	}

	return amount, nil
}

func decString(v *uint256.Int) string {
	if v == nil {
		return ""
	}

	return v.Dec()
}

// Build returns the unsigned psbt of a stake, unstake or withdraw.
func (h *HTTP) Build(c echo.Context) error {
	op, err := operation(c)
	if err != nil {
		return sendError(c, err)
	}

	var body buildRequest
	if err = c.Bind(&body); err != nil {
		return sendError(c, errors.NewInvalidArgumentError("invalid request body", err))
	}

	req := &settlement.PrepareRequest{
		Operation:  op,
		Address:    body.Address,
		FeeRate:    body.FeeRate,
		ClaimRowID: body.ClaimRowID,
	}

	if body.PubKey != "" {
		if req.PubKey, err = hex.DecodeString(body.PubKey); err != nil {
			return sendError(c, errors.NewInvalidArgumentError("invalid pubkey", err))
		}
	}

	if req.Amount, err = parseAmount(body.Amount); err != nil {
		return sendError(c, err)
	}

	res, err := h.settlement.Prepare(c.Request().Context(), req)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, &buildResponse{
		Psbt:         res.PsbtBase64,
		TxID:         res.TxID,
		Fee:          res.Fee,
		FeeRate:      res.FeeRate,
		InputsToSign: res.InputsToSign,
		RowID:        res.RowID,
		Amount:       decString(res.Amount),
		StakedAmount: decString(res.StakedAmount),
	})
}

// Confirm co-signs, broadcasts and records a user-signed psbt.
func (h *HTTP) Confirm(c echo.Context) error {
	op, err := operation(c)
	if err != nil {
		return sendError(c, err)
	}

	var body confirmRequest
	if err = c.Bind(&body); err != nil {
		return sendError(c, errors.NewInvalidArgumentError("invalid request body", err))
	}

	if body.Psbt == "" {
		return sendError(c, errors.NewInvalidArgumentError("psbt is required"))
	}

	expected, err := parseAmount(body.ExpectedAmount)
	if err != nil {
		return sendError(c, err)
	}

	res, err := h.settlement.Confirm(c.Request().Context(), &settlement.ConfirmRequest{
		Operation:      op,
		PsbtBase64:     body.Psbt,
		RowExists:      body.RowExists,
		ClaimRowID:     body.ClaimRowID,
		ExpectedAmount: expected,
	})
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *HTTP) GetEarnings(c echo.Context) error {
	e, err := h.earnings.Earnings(c.Request().Context(), c.Param("address"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(http.StatusOK, &earningsResponse{
		Realized:    e.Realized,
		Unrealized:  e.Unrealized,
		Total:       e.Total,
		Invested:    e.Invested,
		Percentage:  e.Percentage.Round(4),
		CurrentRate: e.CurrentRate,
	})
}

func (h *HTTP) GetRates(c echo.Context) error {
	samples, err := h.earnings.Rates(c.Request().Context())
	if err != nil {
		return sendError(c, err)
	}

	rates := make([]rateResponse, len(samples))
	for i, s := range samples {
		rates[i] = rateResponse{Block: s.Block, Rate: s.Rate}
	}

	return c.JSON(http.StatusOK, rates)
}

func (h *HTTP) HealthHandler(c echo.Context) error {
	status, details, err := h.Health(c.Request().Context(), c.QueryParam("liveness") == "true")
	if err != nil {
		h.logger.Warnf("[API] health check failed: %v", err)
	}

	return c.String(status, details)
}

// Health reports the dependencies behind the API, or only the API itself for a
// liveness check.
func (h *HTTP) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness || h.health == nil {
		return http.StatusOK, "OK", nil
	}

	return h.health(ctx, checkLiveness)
}
