package polymarket

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// DTOs raw de la API Gamma. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// gammaMarketsResponse es la respuesta de GET /markets de Gamma. Cada elemento se
// decodifica por separado: un mercado con un campo mal tipado se descarta solo.
type gammaMarketsResponse []json.RawMessage

// gammaMarket es un mercado tal como lo devuelve Gamma.
// Gamma mezcla números y strings numéricos según el campo y el mercado;
// outcomePrices es además un array JSON serializado dentro de un string.
type gammaMarket struct {
	ID              string      `json:"id"`
	ConditionID     string      `json:"conditionId"`
	Question        string      `json:"question"`
	Slug            string      `json:"slug"`
	EndDate         string      `json:"endDate"`
	EndDateISO      string      `json:"endDateIso"`
	Volume24h       looseNumber `json:"volume24hr"`
	Liquidity       looseNumber `json:"liquidity"`
	OutcomePrices   string      `json:"outcomePrices"`
	LastTradePrice  looseNumber `json:"lastTradePrice"`
	AcceptingOrders bool        `json:"acceptingOrders"`
	Active          bool        `json:"active"`
	Closed          bool        `json:"closed"`
}

// looseNumber acepta 12.5, "12.5", "" y null. Valid=false si no había número.
// json.Number rechaza el string vacío y haría fallar la página entera.
type looseNumber struct {
	Value float64
	Valid bool
}

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = looseNumber{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	if len(b) == 0 {
		*n = looseNumber{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		// un valor no numérico no invalida el mercado entero: queda como ausente
		*n = looseNumber{}
		return nil
	}
	*n = looseNumber{Value: v, Valid: true}
	return nil
}
