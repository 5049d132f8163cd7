package handler

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/export"
	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DuesHandler serves the member view of dues under /v1/dues and the admin
// ledger under /v1/admin/dues.
type DuesHandler struct {
	Ledger *service.Ledger
}

func NewDuesHandler(l *service.Ledger) *DuesHandler { return &DuesHandler{Ledger: l} }

type chargeReq struct {
	Period string `json:"period"`
	Amount int64  `json:"amount"`
}

// ----- member -----

// Me summarizes the caller's dues for ?period= or the latest charge.
func (h *DuesHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Ledger.MyStatus(ctx, currentUser(c).ID, c.QueryParam("period"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// MyPayments lists the caller's payments, optionally for one period.
func (h *DuesHandler) MyPayments(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	payments, err := h.Ledger.MyPayments(ctx, currentUser(c).ID, c.QueryParam("period"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

// ----- admin -----

func (h *DuesHandler) CreateCharge(c echo.Context) error {
	var req chargeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	charge, err := h.Ledger.CreateCharge(ctx, currentUser(c), req.Period, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, charge)
}

func (h *DuesHandler) ListCharges(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	charges, err := h.Ledger.ListCharges(ctx)
	if err != nil {
		return respondError(c, err)
	}
	if charges == nil {
		charges = []model.DuesCharge{}
	}
	return c.JSON(http.StatusOK, charges)
}

func (h *DuesHandler) RecordPayment(c echo.Context) error {
	var req service.PaymentInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Ledger.RecordPayment(ctx, currentUser(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Status is the per-member roster for ?period=.  Empty when the period has
// no charge.
func (h *DuesHandler) Status(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	_, rows, err := h.Ledger.AdminStatusForPeriod(ctx, c.QueryParam("period"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// Payments lists every payment of ?period=, newest first.
func (h *DuesHandler) Payments(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	_, payments, err := h.Ledger.ListPaymentsForPeriod(ctx, c.QueryParam("period"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *DuesHandler) ExportStatus(c echo.Context) error {
	period := c.QueryParam("period")
	ctx, cancel := reqCtx(c)
	defer cancel()

	_, rows, err := h.Ledger.AdminStatusForPeriod(ctx, period)
	if err != nil {
		return respondError(c, err)
	}
	var buf bytes.Buffer
	if err := export.StatusCSV(&buf, period, rows); err != nil {
		return respondError(c, err)
	}
	return attachment(c, export.StatusFilename(period), mimeCSV, buf.Bytes())
}

func (h *DuesHandler) ExportPayments(c echo.Context) error {
	period := c.QueryParam("period")
	ctx, cancel := reqCtx(c)
	defer cancel()

	_, payments, err := h.Ledger.ListPaymentsForPeriod(ctx, period)
	if err != nil {
		return respondError(c, err)
	}
	var buf bytes.Buffer
	if err := export.PaymentsCSV(&buf, period, payments); err != nil {
		return respondError(c, err)
	}
	return attachment(c, export.PaymentsFilename(period), mimeCSV, buf.Bytes())
}

func (h *DuesHandler) ExportWorkbook(c echo.Context) error {
	period := c.QueryParam("period")
	ctx, cancel := reqCtx(c)
	defer cancel()

	_, rows, err := h.Ledger.AdminStatusForPeriod(ctx, period)
	if err != nil {
		return respondError(c, err)
	}
	var buf bytes.Buffer
	if err := export.StatusWorkbook(&buf, period, rows); err != nil {
		return respondError(c, err)
	}
	return attachment(c, export.WorkbookFilename(period), mimeXLSX, buf.Bytes())
}

func attachment(c echo.Context, filename, mime string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, mime, body)
}
