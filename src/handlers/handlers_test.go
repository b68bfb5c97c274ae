package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/stockfolio/backend/src/config"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/processors"
	"github.com/username/stockfolio/backend/src/services"
)

func init() {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		Port:               "8080",
		LogLevel:           "error",
		MaxUploadSizeBytes: 1 << 20,
		DatasetTTL:         time.Hour,
	}
}

type stubPriceService struct {
	price float64
	err   error
}

func (s *stubPriceService) GetQuote(ctx context.Context, symbol string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.price, nil
}

func newTestRouter(prices services.PriceService) chi.Router {
	reportCache := cache.New(services.DefaultCacheExpiration, 0)
	portfolioService := services.NewPortfolioService(
		processors.NewPortfolioProcessor(),
		processors.NewTimeSeriesProcessor(),
		processors.NewOverviewProcessor(),
		processors.NewReturnEstimator(),
		prices,
		reportCache,
		time.Hour,
	)

	uploadHandler := NewUploadHandler(portfolioService)
	portfolioHandler := NewPortfolioHandler(portfolioService)
	returnsHandler := NewReturnsHandler(portfolioService)

	r := chi.NewRouter()
	r.Use(ContextualLoggerMiddleware)
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler.HandleUpload)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/summary", portfolioHandler.HandleGetHoldingSummary)
			r.Get("/overview", portfolioHandler.HandleGetOverview)
			r.Get("/timeseries", portfolioHandler.HandleGetPositionSeries)
			r.Get("/returns", returnsHandler.HandleGetReturnMetrics)
		})
	})
	return r
}

const statementCSV = `"Activity Date","Process Date","Settle Date","Instrument","Description","Trans Code","Quantity","Price","Amount"
"1/15/2024","1/15/2024","1/17/2024","AAPL","Apple","Buy","10","$100.00","($1,000.00)"
"3/01/2024","3/01/2024","3/01/2024","AAPL","Cash Div","CDIV","","","$20.00"
`

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func uploadStatement(t *testing.T, router chi.Router, content string) services.UploadResult {
	t.Helper()
	body, contentType := multipartBody(t, "statement.csv", "text/csv", content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "upload failed: %s", rec.Body.String())

	var result services.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestUploadAndSummaryEndpoint(t *testing.T) {
	router := newTestRouter(&stubPriceService{})
	result := uploadStatement(t, router, statementCSV)
	require.NotEmpty(t, result.DatasetID)
	assert.Equal(t, 2, result.TransactionCount)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+result.DatasetID+"/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var holdings []models.HoldingSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Instrument)
	assert.Equal(t, 2.0, holdings[0].DividendYield)
}

func TestUploadRejectsBinaryContent(t *testing.T) {
	router := newTestRouter(&stubPriceService{})
	body, contentType := multipartBody(t, "statement.csv", "text/csv", "PK\x03\x04\x00\x00binary")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsDisallowedClientContentType(t *testing.T) {
	router := newTestRouter(&stubPriceService{})
	body, contentType := multipartBody(t, "statement.pdf", "application/pdf", statementCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryUnknownDatasetReturns404(t *testing.T) {
	router := newTestRouter(&stubPriceService{})
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/nope/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	router := newTestRouter(&stubPriceService{})
	result := uploadStatement(t, router, statementCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+result.DatasetID+"/overview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var overview models.PortfolioOverview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, 1000.0, overview.TotalInvestment)
	assert.Equal(t, 1, overview.HoldingCount)
}

func TestTimeseriesEndpoint(t *testing.T) {
	router := newTestRouter(&stubPriceService{})
	result := uploadStatement(t, router, statementCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+result.DatasetID+"/timeseries?instrument=AAPL", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var series map[string][]models.PositionPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Contains(t, series, "AAPL")
	require.Len(t, series["AAPL"], 1)
	assert.Equal(t, 10.0, series["AAPL"][0].CumulativeQuantity)
}

func TestReturnsEndpoint(t *testing.T) {
	router := newTestRouter(&stubPriceService{price: 110})
	result := uploadStatement(t, router, statementCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+result.DatasetID+"/returns?instrument=AAPL", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var metrics models.ReturnMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Equal(t, "AAPL", metrics.Instrument)
	assert.Equal(t, 110.0, metrics.CurrentPrice)
	assert.Greater(t, metrics.XIRR, 0.0)
}

func TestReturnsEndpointRequiresInstrument(t *testing.T) {
	router := newTestRouter(&stubPriceService{price: 110})
	result := uploadStatement(t, router, statementCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+result.DatasetID+"/returns", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReturnsEndpointQuoteFailureIsBadGateway(t *testing.T) {
	router := newTestRouter(&stubPriceService{err: fmt.Errorf("market data down")})
	result := uploadStatement(t, router, statementCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+result.DatasetID+"/returns?instrument=AAPL", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// stubPortfolioService serves the returns handler directly so estimator
// failures can be forced regardless of the dataset contents.
type stubPortfolioService struct {
	returnsErr error
}

func (s *stubPortfolioService) ProcessUpload(io.Reader, string, string, int64) (*services.UploadResult, error) {
	return nil, nil
}

func (s *stubPortfolioService) GetHoldingSummary(string) ([]models.HoldingSummary, error) {
	return nil, nil
}

func (s *stubPortfolioService) GetOverview(string) (*models.PortfolioOverview, error) {
	return nil, nil
}

func (s *stubPortfolioService) GetPositionSeries(string, string) (map[string][]models.PositionPoint, error) {
	return nil, nil
}

func (s *stubPortfolioService) GetReturnMetrics(context.Context, string, string, string) (*models.ReturnMetrics, error) {
	return nil, s.returnsErr
}

func TestReturnsEndpointNonConvergenceIsUnprocessable(t *testing.T) {
	for _, estimatorErr := range []error{processors.ErrNoConvergence, processors.ErrInsufficientFlows} {
		handler := NewReturnsHandler(&stubPortfolioService{returnsErr: estimatorErr})
		r := chi.NewRouter()
		r.Get("/api/datasets/{id}/returns", handler.HandleGetReturnMetrics)

		req := httptest.NewRequest(http.MethodGet, "/api/datasets/abc/returns?instrument=AAPL", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "return not computable")
	}
}
