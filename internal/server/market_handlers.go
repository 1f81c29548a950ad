package server

import (
	"net/http"
)

func (h *handlers) marketPrices(w http.ResponseWriter, r *http.Request) {
	series, err := h.Market.Prices(r.Context())
	if err != nil {
		respondError(w, r, Internal(err))
		return
	}
	respondOK(w, series)
}

func (h *handlers) marketBitcoin(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Market.Bitcoin(r.Context())
	if err != nil {
		respondError(w, r, Internal(err))
		return
	}
	respondOK(w, summary)
}
