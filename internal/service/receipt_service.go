package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/blob"
	"github.com/mmynk/splittat/internal/calculator"
	"github.com/mmynk/splittat/internal/jobs"
	"github.com/mmynk/splittat/internal/metrics"
	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/internal/ocr"
	"github.com/mmynk/splittat/internal/storage"
)

// DefaultMaxUploadBytes caps receipt uploads when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// ReceiptService manages uploaded receipts and their processing.
type ReceiptService struct {
	store          storage.Store
	blobs          blob.Store
	extractor      ocr.Extractor
	publisher      jobs.Publisher
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

// ReceiptOption configures a ReceiptService.
type ReceiptOption func(*ReceiptService)

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) ReceiptOption {
	return func(s *ReceiptService) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithReceiptMetrics counts receipt status transitions.
func WithReceiptMetrics(m *metrics.Metrics) ReceiptOption {
	return func(s *ReceiptService) {
		s.metrics = m
	}
}

// NewReceiptService creates a receipt service. Uploads are handed to
// publisher; the worker side calls Process.
func NewReceiptService(store storage.Store, blobs blob.Store, extractor ocr.Extractor, publisher jobs.Publisher, opts ...ReceiptOption) *ReceiptService {
	s := &ReceiptService{
		store:          store,
		blobs:          blobs,
		extractor:      extractor,
		publisher:      publisher,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUploadBytes is the largest accepted upload.
func (s *ReceiptService) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Upload stores a receipt image, creates the receipt in Uploaded status
// and queues it for processing.
func (s *ReceiptService) Upload(ctx context.Context, userID, contentType string, data []byte) (*models.Receipt, error) {
	slog.Info("Upload request received", "user_id", userID, "content_type", contentType, "size", len(data))

	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if _, ok := blob.Extension(contentType); !ok {
		return nil, invalidArgument("unsupported file type %q", contentType)
	}
	if len(data) == 0 {
		return nil, invalidArgument("file is empty")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxUploadBytes)
	}

	location, err := s.blobs.Put(ctx, blob.ReceiptKey(userID, contentType), contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt image: %w", err)
	}

	receipt := &models.Receipt{
		UserID:   userID,
		ImageURL: location,
		Status:   models.ReceiptStatusUploaded,
	}
	if err := s.store.CreateReceipt(ctx, receipt); err != nil {
		if delErr := s.blobs.Delete(ctx, location); delErr != nil {
			slog.Warn("Failed to clean up receipt image", "location", location, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}
	s.metrics.ReceiptStatus(string(receipt.Status))

	if err := s.publisher.PublishProcessReceipt(ctx, receipt.ID); err != nil {
		slog.Error("Failed to queue receipt", "receipt_id", receipt.ID, "error", err)
		s.setStatus(ctx, receipt.ID, models.ReceiptStatusFailed, "Processing could not be started")
		receipt.Status = models.ReceiptStatusFailed
		receipt.ErrorMessage = "Processing could not be started"
	}

	slog.Info("Receipt uploaded", "receipt_id", receipt.ID, "location", location)
	return receipt, nil
}

// List returns the user's receipts, newest first, without items.
func (s *ReceiptService) List(ctx context.Context, userID string) ([]*models.Receipt, error) {
	return s.store.ListReceipts(ctx, userID)
}

// Get returns one of the user's receipts. Receipts of other users are
// reported as not found.
func (s *ReceiptService) Get(ctx context.Context, userID, id string) (*models.Receipt, error) {
	receipt, err := s.store.GetReceipt(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("receipt")
		}
		return nil, err
	}
	if receipt.UserID != userID {
		return nil, notFound("receipt")
	}
	return receipt, nil
}

// ItemsUpdate replaces a receipt's items. Unset optional fields keep their value.
type ItemsUpdate struct {
	MerchantName *string
	Date         *time.Time
	Tax          decimal.NullDecimal
	Tip          decimal.NullDecimal
	Items        []models.ReceiptItem
}

// UpdateItems replaces the receipt's items, recomputes its total and marks
// it Ready. Existing splits are deleted since they reference the old items.
func (s *ReceiptService) UpdateItems(ctx context.Context, userID, id string, update ItemsUpdate) (*models.Receipt, error) {
	slog.Info("UpdateItems request received", "receipt_id", id, "items_count", len(update.Items))

	receipt, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status.Phase() == models.ReceiptPhaseProcessing {
		return nil, failedPrecondition("receipt is still processing")
	}
	if len(update.Items) == 0 {
		return nil, invalidArgument("at least one item is required")
	}

	items := make([]models.ReceiptItem, len(update.Items))
	for i, item := range update.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		item.Price = item.Price.Round(calculator.AmountPlaces)
		if err := item.Validate(); err != nil {
			return nil, invalidArgument("%v", err)
		}
		items[i] = item
	}

	if update.MerchantName != nil {
		receipt.MerchantName = strings.TrimSpace(*update.MerchantName)
	}
	if update.Date != nil {
		receipt.Date = update.Date
	}
	if update.Tax.Valid {
		receipt.Tax = update.Tax
	}
	if update.Tip.Valid {
		receipt.Tip = update.Tip
	}
	receipt.Items = items
	receipt.Total = calculator.ExpectedTotal(receipt)
	receipt.Status = models.ReceiptStatusReady
	receipt.ErrorMessage = ""

	if err := s.store.SaveReceiptContent(ctx, receipt); err != nil {
		return nil, fmt.Errorf("failed to save receipt: %w", err)
	}
	s.metrics.ReceiptStatus(string(receipt.Status))

	slog.Info("Receipt items updated", "receipt_id", id, "total", receipt.Total.StringFixed(2))
	return s.store.GetReceipt(ctx, id)
}

// Delete removes the receipt with its items and splits. The image is
// removed on a best-effort basis.
func (s *ReceiptService) Delete(ctx context.Context, userID, id string) error {
	receipt, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReceipt(ctx, id); err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	if err := s.blobs.Delete(ctx, receipt.ImageURL); err != nil && !errors.Is(err, blob.ErrNotFound) {
		slog.Warn("Failed to delete receipt image", "receipt_id", id, "location", receipt.ImageURL, "error", err)
	}
	slog.Info("Receipt deleted", "receipt_id", id)
	return nil
}

// Requeue publishes a processing job for every receipt still in the
// Processing phase. The server calls it at startup since jobs queued or in
// flight at the previous shutdown are lost.
func (s *ReceiptService) Requeue(ctx context.Context) (int, error) {
	receipts, err := s.store.ListReceiptsByStatus(ctx, models.ProcessingStatuses...)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinished receipts: %w", err)
	}

	queued := 0
	for _, receipt := range receipts {
		if err := s.publisher.PublishProcessReceipt(ctx, receipt.ID); err != nil {
			return queued, fmt.Errorf("failed to requeue receipt %s: %w", receipt.ID, err)
		}
		queued++
	}
	if queued > 0 {
		slog.Info("Unfinished receipts requeued", "count", queued)
	}
	return queued, nil
}

// Process runs OCR over an uploaded receipt. It is the jobs.Handler of the
// processing queue. A returned error is retried by the queue; on the last
// attempt the receipt is marked Failed first.
func (s *ReceiptService) Process(ctx context.Context, job *jobs.ProcessReceiptJob) error {
	receipt, err := s.store.GetReceipt(ctx, job.ReceiptID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Info("Receipt deleted before processing", "receipt_id", job.ReceiptID)
		return nil
	}
	if err != nil {
		return s.processFailed(ctx, job, err)
	}
	if receipt.Status.IsTerminal() {
		return nil
	}

	s.setStatus(ctx, receipt.ID, models.ReceiptStatusOcrInProgress, "")

	data, err := s.blobs.Get(ctx, receipt.ImageURL)
	if err != nil {
		return s.processFailed(ctx, job, fmt.Errorf("failed to load receipt image: %w", err))
	}

	result, err := s.extractor.Extract(ctx, blob.ContentType(receipt.ImageURL), data)
	if errors.Is(err, ocr.ErrNoItems) {
		s.setStatus(ctx, receipt.ID, models.ReceiptStatusParseFailed, "No line items were recognized. Add them manually.")
		return nil
	}
	if err != nil {
		return s.processFailed(ctx, job, fmt.Errorf("text extraction failed: %w", err))
	}

	s.setStatus(ctx, receipt.ID, models.ReceiptStatusOcrCompleted, "")

	applyResult(receipt, result)
	if err := s.store.SaveReceiptContent(ctx, receipt); err != nil {
		return s.processFailed(ctx, job, fmt.Errorf("failed to save extracted items: %w", err))
	}
	s.metrics.ReceiptStatus(string(receipt.Status))

	slog.Info("Receipt processed",
		"receipt_id", receipt.ID,
		"items_count", len(receipt.Items),
		"total", receipt.Total.StringFixed(2),
	)
	return nil
}

func applyResult(receipt *models.Receipt, result *ocr.Result) {
	receipt.MerchantName = result.MerchantName
	receipt.Date = result.Date
	receipt.Tax = result.Tax
	receipt.Tip = result.Tip
	receipt.Confidence = result.Confidence
	receipt.Items = make([]models.ReceiptItem, len(result.Items))
	for i, item := range result.Items {
		receipt.Items[i] = models.ReceiptItem{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}
	if result.Total.Valid {
		receipt.Total = result.Total.Decimal
	} else {
		receipt.Total = calculator.ExpectedTotal(receipt)
	}
	receipt.Status = models.ReceiptStatusReady
	receipt.ErrorMessage = ""
}

func (s *ReceiptService) processFailed(ctx context.Context, job *jobs.ProcessReceiptJob, err error) error {
	if job.LastAttempt() {
		s.setStatus(ctx, job.ReceiptID, models.ReceiptStatusFailed, "Receipt could not be processed")
	}
	return err
}

// setStatus records a status change. Failures are only logged.
func (s *ReceiptService) setStatus(ctx context.Context, id string, status models.ReceiptStatus, message string) {
	if err := s.store.UpdateReceiptStatus(ctx, id, status, message); err != nil {
		slog.Error("Failed to update receipt status", "receipt_id", id, "status", status, "error", err)
		return
	}
	s.metrics.ReceiptStatus(string(status))
}
