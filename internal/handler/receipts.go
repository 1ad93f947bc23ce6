package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/errs"
	"github.com/mmynk/splittat/internal/middleware"
	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/internal/service"
	"github.com/mmynk/splittat/pkg/api"
)

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 64 << 10

// UploadReceipt accepts a multipart form with the image in field "file".
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.receipts.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, errs.NewPayloadTooLargeError("File too large"))
			return
		}
		writeError(w, r, errs.NewBadRequestError("A receipt file is required", []errs.FieldError{{Field: "file", Error: "is required"}}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, r, errs.NewBadRequestError("Could not read the uploaded file", nil))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	receipt, err := h.receipts.Upload(r.Context(), middleware.GetUserID(r.Context()), contentType, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, service.ToAPIReceipt(receipt, false))
}

// ListReceipts returns the caller's receipts, newest first.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.receipts.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := &api.ListReceiptsResponse{Receipts: make([]*api.Receipt, len(receipts))}
	for i, receipt := range receipts {
		out.Receipts[i] = service.ToAPIReceipt(receipt, false)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetReceipt returns one receipt with items. Clients poll it while the
// receipt is processing.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.receipts.Get(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.ToAPIReceipt(receipt, true))
}

// UpdateReceiptItems replaces the items of a receipt.
func (h *Handler) UpdateReceiptItems(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	update := service.ItemsUpdate{
		MerchantName: req.MerchantName,
		Items:        make([]models.ReceiptItem, len(req.Items)),
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			writeError(w, r, errs.NewBadRequestError("Validation failed", []errs.FieldError{{Field: "date", Error: "must be a date in the format 2006-01-02"}}))
			return
		}
		update.Date = &date
	}
	if req.Tax != nil {
		update.Tax = decimal.NewNullDecimal(decimal.NewFromFloat(*req.Tax))
	}
	if req.Tip != nil {
		update.Tip = decimal.NewNullDecimal(decimal.NewFromFloat(*req.Tip))
	}
	for i, item := range req.Items {
		update.Items[i] = models.ReceiptItem{
			Name:     item.Name,
			Price:    decimal.NewFromFloat(item.Price),
			Quantity: item.Quantity,
		}
	}

	receipt, err := h.receipts.UpdateItems(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id"), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.ToAPIReceipt(receipt, true))
}

// DeleteReceipt removes a receipt and its splits.
func (h *Handler) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := h.receipts.Delete(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
