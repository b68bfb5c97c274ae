package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/parsers"
	"github.com/username/stockfolio/backend/src/processors"
)

const (
	ckDataset              = "ds_txs_%s"
	ckHoldingSummary       = "agg_holding_summary_ds_%s"
	ckOverview             = "agg_overview_ds_%s"
	ckPositionSeries       = "agg_position_series_ds_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type portfolioServiceImpl struct {
	portfolioProcessor  *processors.PortfolioProcessor
	timeSeriesProcessor *processors.TimeSeriesProcessor
	overviewProcessor   *processors.OverviewProcessor
	returnEstimator     *processors.ReturnEstimator
	priceService        PriceService
	reportCache         *cache.Cache
	datasetTTL          time.Duration
	now                 func() time.Time
}

func NewPortfolioService(
	portfolioProcessor *processors.PortfolioProcessor,
	timeSeriesProcessor *processors.TimeSeriesProcessor,
	overviewProcessor *processors.OverviewProcessor,
	returnEstimator *processors.ReturnEstimator,
	priceService PriceService,
	reportCache *cache.Cache,
	datasetTTL time.Duration,
) PortfolioService {
	return &portfolioServiceImpl{
		portfolioProcessor:  portfolioProcessor,
		timeSeriesProcessor: timeSeriesProcessor,
		overviewProcessor:   overviewProcessor,
		returnEstimator:     returnEstimator,
		priceService:        priceService,
		reportCache:         reportCache,
		datasetTTL:          datasetTTL,
		now:                 time.Now,
	}
}

// ProcessUpload parses the uploaded export, assigns it a dataset ID and keeps
// the transactions in the TTL store. The holdings summary is computed and
// cached right away since the dashboard requests it first.
func (s *portfolioServiceImpl) ProcessUpload(fileReader io.Reader, source string, filename string, filesize int64) (*UploadResult, error) {
	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	txs, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	datasetID := uuid.New().String()
	s.reportCache.Set(fmt.Sprintf(ckDataset, datasetID), txs, s.datasetTTL)

	holdings := s.portfolioProcessor.Summarize(txs)
	s.reportCache.Set(fmt.Sprintf(ckHoldingSummary, datasetID), holdings, DefaultCacheExpiration)

	logger.L.Info("Processed upload",
		"datasetID", datasetID,
		"source", source,
		"filename", filename,
		"filesize", filesize,
		"transactions", len(txs),
		"holdings", len(holdings))

	return &UploadResult{
		DatasetID:        datasetID,
		TransactionCount: len(txs),
		Holdings:         holdings,
	}, nil
}

func (s *portfolioServiceImpl) getDataset(datasetID string) ([]models.Transaction, error) {
	cached, found := s.reportCache.Get(fmt.Sprintf(ckDataset, datasetID))
	if !found {
		return nil, ErrDatasetNotFound
	}
	txs, ok := cached.([]models.Transaction)
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return txs, nil
}

func (s *portfolioServiceImpl) GetHoldingSummary(datasetID string) ([]models.HoldingSummary, error) {
	cacheKey := fmt.Sprintf(ckHoldingSummary, datasetID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if holdings, ok := cached.([]models.HoldingSummary); ok {
			return holdings, nil
		}
	}

	txs, err := s.getDataset(datasetID)
	if err != nil {
		return nil, err
	}

	holdings := s.portfolioProcessor.Summarize(txs)
	s.reportCache.Set(cacheKey, holdings, DefaultCacheExpiration)
	return holdings, nil
}

func (s *portfolioServiceImpl) GetOverview(datasetID string) (*models.PortfolioOverview, error) {
	cacheKey := fmt.Sprintf(ckOverview, datasetID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if overview, ok := cached.(*models.PortfolioOverview); ok {
			return overview, nil
		}
	}

	holdings, err := s.GetHoldingSummary(datasetID)
	if err != nil {
		return nil, err
	}

	overview := s.overviewProcessor.Build(holdings)
	s.reportCache.Set(cacheKey, overview, DefaultCacheExpiration)
	return overview, nil
}

// GetPositionSeries returns the buy accumulation series, either for every
// instrument or restricted to one when instrument is non-empty.
func (s *portfolioServiceImpl) GetPositionSeries(datasetID string, instrument string) (map[string][]models.PositionPoint, error) {
	cacheKey := fmt.Sprintf(ckPositionSeries, datasetID)
	series, found := s.cachedSeries(cacheKey)
	if !found {
		txs, err := s.getDataset(datasetID)
		if err != nil {
			return nil, err
		}
		series = s.timeSeriesProcessor.Build(txs)
		s.reportCache.Set(cacheKey, series, DefaultCacheExpiration)
	}

	if instrument == "" {
		return series, nil
	}
	points, ok := series[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotHeld, instrument)
	}
	return map[string][]models.PositionPoint{instrument: points}, nil
}

func (s *portfolioServiceImpl) cachedSeries(cacheKey string) (map[string][]models.PositionPoint, bool) {
	cached, found := s.reportCache.Get(cacheKey)
	if !found {
		return nil, false
	}
	series, ok := cached.(map[string][]models.PositionPoint)
	return series, ok
}

// GetReturnMetrics builds the instrument's cash-flow sequence, appends the
// mark-to-market flow priced from a live quote and solves for the annualized
// rate. Results are never cached: the quote moves.
func (s *portfolioServiceImpl) GetReturnMetrics(ctx context.Context, datasetID, instrument, period string) (*models.ReturnMetrics, error) {
	txs, err := s.getDataset(datasetID)
	if err != nil {
		return nil, err
	}

	netQuantity, held := netHeldQuantity(txs, instrument)
	if !held {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotHeld, instrument)
	}

	now := s.now()
	since, err := periodStart(period, now)
	if err != nil {
		return nil, err
	}

	price, err := s.priceService.GetQuote(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", instrument, err)
	}

	markToMarket := price * netQuantity
	flows := s.returnEstimator.CashFlows(txs, instrument, since, markToMarket, now)
	totalReturn := s.returnEstimator.TotalReturn(flows)

	xirr, err := s.returnEstimator.XIRR(flows)
	if err != nil {
		return nil, err
	}

	return &models.ReturnMetrics{
		Instrument:   instrument,
		Period:       normalizePeriod(period),
		XIRR:         xirr,
		TotalReturn:  totalReturn,
		CurrentPrice: price,
		MarkToMarket: markToMarket,
		FlowCount:    len(flows),
	}, nil
}

// netHeldQuantity reports the currently-held share count and whether the
// instrument has an open position. The full transaction set is always used:
// a period filter narrows flows, not the position.
func netHeldQuantity(txs []models.Transaction, instrument string) (float64, bool) {
	var bought, sold float64
	for _, tx := range txs {
		if tx.Instrument != instrument {
			continue
		}
		switch tx.Action {
		case models.ActionBuy:
			bought += tx.Quantity.InexactFloat64()
		case models.ActionSell:
			sold += tx.Quantity.InexactFloat64()
		}
	}
	if bought == 0 || bought-sold <= 0 {
		return 0, false
	}
	return bought - sold, true
}

func normalizePeriod(period string) string {
	if period == "" {
		return "all"
	}
	return period
}

func periodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "", "all":
		return time.Time{}, nil
	case "1y":
		return now.AddDate(-1, 0, 0), nil
	case "6m":
		return now.AddDate(0, -6, 0), nil
	case "3m":
		return now.AddDate(0, -3, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}
