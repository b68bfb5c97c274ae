package handlers

import (
	"errors"
	"net/http"

	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/processors"
	"github.com/username/stockfolio/backend/src/services"
	"github.com/username/stockfolio/backend/src/utils"
)

type ReturnsHandler struct {
	portfolioService services.PortfolioService
}

func NewReturnsHandler(service services.PortfolioService) *ReturnsHandler {
	return &ReturnsHandler{portfolioService: service}
}

// HandleGetReturnMetrics computes xirr and total return for the selected
// instrument against a live quote. A non-convergent solve is reported as
// not computable, never as a number.
func (h *ReturnsHandler) HandleGetReturnMetrics(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	datasetID, err := getDatasetID(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		utils.SendJSONError(w, "instrument is required", http.StatusBadRequest)
		return
	}
	period := r.URL.Query().Get("period")

	metrics, err := h.portfolioService.GetReturnMetrics(r.Context(), datasetID, instrument, period)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDatasetNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrInstrumentNotHeld):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrInvalidPeriod):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, processors.ErrNoConvergence), errors.Is(err, processors.ErrInsufficientFlows):
			ctxLogger.Warn("Return not computable", "datasetID", datasetID, "instrument", instrument, "error", err)
			utils.SendJSONError(w, "return not computable", http.StatusUnprocessableEntity)
		default:
			ctxLogger.Error("Failed to compute return metrics", "datasetID", datasetID, "instrument", instrument, "error", err)
			utils.SendJSONError(w, "Failed to compute return metrics", http.StatusBadGateway)
		}
		return
	}

	utils.SendJSON(w, metrics)
}
