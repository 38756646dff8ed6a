package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/domain/entities"
	"crypto-price-monitor/internal/infrastructure/logging"
)

// PriceReader lecturas que exponen los endpoints públicos
type PriceReader interface {
	GetCurrentPrices(ctx context.Context) []entities.PriceRecord
	GetPrice(ctx context.Context, idOrSymbol string) (entities.PriceRecord, bool)
}

// PricesHandler handles requests related to coin prices
type PricesHandler struct {
	prices PriceReader
	mapper *dto.PriceMapper
	clock  clockwork.Clock
}

// NewPricesHandler creates a new instance of the prices handler
func NewPricesHandler(prices PriceReader, mapper *dto.PriceMapper, clock clockwork.Clock) *PricesHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PricesHandler{
		prices: prices,
		mapper: mapper,
		clock:  clock,
	}
}

// GetPrices godoc
// @Summary Current prices
// @Description Returns every monitored coin ordered by market cap. Never fails for missing data: the list may be stale (stale=true) or empty.
// @Tags prices
// @Produce json
// @Param ids query string false "Comma separated coin ids or symbols" example(bitcoin,ETH)
// @Success 200 {object} dto.PricesResponse "Current prices, possibly stale"
// @Failure 400 {object} dto.ErrorResponse "Invalid ids parameter"
// @Failure 429 {object} dto.ErrorResponse "Client rate limit exceeded"
// @Router /api/v1/prices [get]
func (h *PricesHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := dto.NewGetPricesRequest(r.URL.Query().Get("ids"))
	if err != nil {
		writeErrorResponse(ctx, w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	records := h.mapper.FilterRecords(h.prices.GetCurrentPrices(ctx), req)
	resp := h.mapper.ToPricesResponse(records, h.clock.Now())

	if resp.Stale || resp.Count == 0 {
		logging.Warn(ctx, "Serving degraded price list", logging.Fields{
			logging.FieldCoinCount: resp.Count,
			"stale":                resp.Stale,
		})
	}

	writeJSONResponse(ctx, w, http.StatusOK, resp)
}

// GetPrice godoc
// @Summary Price for one coin
// @Description Looks a coin up by CoinGecko id or by ticker symbol (case insensitive).
// @Tags prices
// @Produce json
// @Param id path string true "Coin id or symbol" example(bitcoin)
// @Success 200 {object} dto.PriceResponse "Coin found, possibly stale"
// @Failure 404 {object} dto.ErrorResponse "No data for the coin in any tier"
// @Router /api/v1/prices/{id} [get]
func (h *PricesHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := mux.Vars(r)["id"]

	record, found := h.prices.GetPrice(ctx, key)
	if !found {
		logging.Info(ctx, "Price not found", logging.Fields{
			logging.FieldCoinID: key,
		})
		writeErrorResponse(ctx, w, http.StatusNotFound, "PRICE_NOT_FOUND", "No data for coin "+key)
		return
	}

	writeJSONResponse(ctx, w, http.StatusOK, &dto.PriceResponse{
		Price: h.mapper.ToPriceData(record, h.clock.Now()),
	})
}
