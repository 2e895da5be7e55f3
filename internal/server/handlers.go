package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/wheel-trader/internal/domain"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"market_open": s.market.IsOpenNow(),
		"time":        time.Now().Format(time.RFC3339),
	})
}

// portfolioResponse is the persisted portfolio view
type portfolioResponse struct {
	Name          string `json:"name"`
	FreeCash      string `json:"free_cash"`
	ReservedCash  string `json:"reserved_cash"`
	TotalCash     string `json:"total_cash"`
	NetAssetValue string `json:"net_asset_value"`
	OpenOrders    int    `json:"open_orders"`
	OpenPositions int    `json:"open_positions"`
	AsOf          string `json:"as_of"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LoadPortfolio(s.portfolio)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load portfolio")
		writeError(w, http.StatusNotFound, "portfolio not found")
		return
	}

	writeJSON(w, http.StatusOK, portfolioResponse{
		Name:          snap.Name,
		FreeCash:      snap.FreeCash.String(),
		ReservedCash:  snap.ReservedCash.String(),
		TotalCash:     snap.FreeCash.Add(snap.ReservedCash).String(),
		NetAssetValue: snap.NetAssetValue.String(),
		OpenOrders:    len(snap.OpenOrders),
		OpenPositions: len(snap.OpenPositions),
		AsOf:          snap.TakenAt.Format(time.RFC3339),
	})
}

type orderResponse struct {
	ID       int64  `json:"id"`
	Ticker   string `json:"ticker"`
	Type     string `json:"type"`
	Side     string `json:"side"`
	Limit    string `json:"limit"`
	Quantity int64  `json:"quantity"`
	TIF      string `json:"tif"`
	Claim    string `json:"claim_against_cash"`
	OpenedAt string `json:"opened_at"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LoadPortfolio(s.portfolio)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load portfolio")
		writeError(w, http.StatusNotFound, "portfolio not found")
		return
	}

	out := make([]orderResponse, 0, len(snap.OpenOrders))
	for _, o := range snap.OpenOrders {
		out = append(out, orderResponse{
			ID:       o.ID,
			Ticker:   o.Security.Ticker,
			Type:     string(o.Security.Type),
			Side:     string(o.Side),
			Limit:    o.Limit.String(),
			Quantity: o.Quantity,
			TIF:      string(o.TIF),
			Claim:    o.ClaimAgainstCash.String(),
			OpenedAt: o.OpenedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type positionResponse struct {
	ID            int64  `json:"id"`
	Ticker        string `json:"ticker"`
	Type          string `json:"type"`
	Direction     string `json:"direction"`
	Quantity      int64  `json:"quantity"`
	PriceAtOpen   string `json:"price_at_open"`
	CostBasis     string `json:"cost_basis"`
	Claim         string `json:"claim_against_cash"`
	LastPrice     string `json:"last_price"`
	NetAssetValue string `json:"net_asset_value"`
	Profit        string `json:"profit"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LoadPortfolio(s.portfolio)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load portfolio")
		writeError(w, http.StatusNotFound, "portfolio not found")
		return
	}

	out := make([]positionResponse, 0, len(snap.OpenPositions))
	for _, p := range snap.OpenPositions {
		out = append(out, positionResponse{
			ID:            p.ID,
			Ticker:        p.Security.Ticker,
			Type:          string(p.Security.Type),
			Direction:     direction(p),
			Quantity:      p.Quantity,
			PriceAtOpen:   p.PriceAtOpen.String(),
			CostBasis:     p.CostBasis.String(),
			Claim:         p.ClaimAgainstCash.String(),
			LastPrice:     p.LastPrice.String(),
			NetAssetValue: p.NetAssetValue.String(),
			Profit:        p.Profit.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func direction(p *domain.Position) string {
	if p.Short {
		return "SHORT"
	}
	return "LONG"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
