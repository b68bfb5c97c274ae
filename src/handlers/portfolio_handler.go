package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/services"
	"github.com/username/stockfolio/backend/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(portfolioService services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// Helper to extract the dataset ID from the URL path.
func getDatasetID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return "", errors.New("dataset id is required")
	}
	return id, nil
}

func (h *PortfolioHandler) HandleGetHoldingSummary(w http.ResponseWriter, r *http.Request) {
	datasetID, err := getDatasetID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdings, err := h.portfolioService.GetHoldingSummary(datasetID)
	if err != nil {
		if errors.Is(err, services.ErrDatasetNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Error retrieving holding summary", "datasetID", datasetID, "error", err)
		utils.SendJSONError(w, "Error retrieving holding summary", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.HoldingSummary{}
	}
	utils.SendJSON(w, holdings)
}

func (h *PortfolioHandler) HandleGetOverview(w http.ResponseWriter, r *http.Request) {
	datasetID, err := getDatasetID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	overview, err := h.portfolioService.GetOverview(datasetID)
	if err != nil {
		if errors.Is(err, services.ErrDatasetNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Error retrieving overview", "datasetID", datasetID, "error", err)
		utils.SendJSONError(w, "Error retrieving overview", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, overview)
}

func (h *PortfolioHandler) HandleGetPositionSeries(w http.ResponseWriter, r *http.Request) {
	datasetID, err := getDatasetID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	instrument := r.URL.Query().Get("instrument")

	series, err := h.portfolioService.GetPositionSeries(datasetID, instrument)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDatasetNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrInstrumentNotHeld):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		default:
			logger.FromContext(r.Context()).Error("Error retrieving position series", "datasetID", datasetID, "instrument", instrument, "error", err)
			utils.SendJSONError(w, "Error retrieving position series", http.StatusInternalServerError)
		}
		return
	}
	if series == nil {
		series = map[string][]models.PositionPoint{}
	}
	utils.SendJSON(w, series)
}
