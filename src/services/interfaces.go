package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/stockfolio/backend/src/models"
)

// UploadResult is the response of a single ProcessUpload call. The dataset ID
// keys every subsequent read until the dataset expires.
type UploadResult struct {
	DatasetID        string                  `json:"dataset_id"`
	TransactionCount int                     `json:"transaction_count"`
	Holdings         []models.HoldingSummary `json:"holdings"`
}

// Define common service errors
var (
	ErrParsingFailed     = errors.New("csv parsing failed")
	ErrDatasetNotFound   = errors.New("dataset not found or expired")
	ErrInstrumentNotHeld = errors.New("instrument not currently held")
	ErrInvalidPeriod     = errors.New("invalid period")
)

// PortfolioService defines the interface for the core dashboard computations.
// Every derived report is a pure function of the uploaded transaction set;
// nothing is persisted beyond the in-memory dataset store.
type PortfolioService interface {
	ProcessUpload(fileReader io.Reader, source string, filename string, filesize int64) (*UploadResult, error)
	GetHoldingSummary(datasetID string) ([]models.HoldingSummary, error)
	GetOverview(datasetID string) (*models.PortfolioOverview, error)
	GetPositionSeries(datasetID string, instrument string) (map[string][]models.PositionPoint, error)

	// GetReturnMetrics computes xirr and total return for one instrument
	// against a live quote. period is one of "all", "1y", "6m", "3m".
	GetReturnMetrics(ctx context.Context, datasetID, instrument, period string) (*models.ReturnMetrics, error)
}

// PriceService defines the interface for fetching current market prices.
type PriceService interface {
	GetQuote(ctx context.Context, symbol string) (float64, error)
}
