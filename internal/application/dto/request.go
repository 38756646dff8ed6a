package dto

import (
	"errors"
	"strings"
)

// maxFilterKeys límite de ids/símbolos por request
const maxFilterKeys = 50

// GetPricesRequest representa la request de GET /api/v1/prices
type GetPricesRequest struct {
	// Keys ids o símbolos pedidos; vacío = todas las monedas
	Keys []string `json:"keys"`
}

// NewGetPricesRequest parsea ?ids=bitcoin,ETH. Sin parámetro devuelve todas.
func NewGetPricesRequest(idsParam string) (*GetPricesRequest, error) {
	if strings.TrimSpace(idsParam) == "" {
		return &GetPricesRequest{}, nil
	}

	seen := make(map[string]bool)
	var keys []string
	for _, raw := range strings.Split(idsParam, ",") {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" || seen[key] {
			continue
		}
		if strings.ContainsAny(key, "/ ") {
			return nil, errors.New("invalid coin key: " + raw + " (expected coin id or symbol)")
		}
		seen[key] = true
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		return nil, errors.New("no valid coin keys provided")
	}
	if len(keys) > maxFilterKeys {
		return nil, errors.New("too many coin keys requested")
	}

	return &GetPricesRequest{Keys: keys}, nil
}

// Matches true si la request no filtra o si id/símbolo coincide
func (r *GetPricesRequest) Matches(id, symbol string) bool {
	if len(r.Keys) == 0 {
		return true
	}
	symbol = strings.ToLower(symbol)
	for _, k := range r.Keys {
		if k == id || k == symbol {
			return true
		}
	}
	return false
}

// BreakerAction operación administrativa sobre el circuit breaker
type BreakerAction string

const (
	BreakerForceOpen BreakerAction = "force-open"
	BreakerDisable   BreakerAction = "disable"
	BreakerReset     BreakerAction = "reset"
)

func ParseBreakerAction(raw string) (BreakerAction, error) {
	switch a := BreakerAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case BreakerForceOpen, BreakerDisable, BreakerReset:
		return a, nil
	default:
		return "", errors.New("unsupported breaker action: " + raw + " (supported: force-open, disable, reset)")
	}
}
