// Package schemas holds the wire-level request/response DTOs for the
// HTTP surface. Monetary and quantity fields are shopspring/decimal on
// the wire (matching chycee-CryptoGo's money discipline) and are
// converted to/from float64 at the api/handlers boundary before
// reaching the facade, which computes in float64 throughout (matching
// spec.md's literal numeric examples, e.g. quantity=1.5).
package schemas

import "github.com/shopspring/decimal"

type CreateSessionResponse struct {
	PlayerID string `json:"playerId"`
}

type SubmitOrderRequest struct {
	PlayerID string          `json:"playerId"`
	ItemID   string          `json:"itemId"`
	Side     string          `json:"side"` // "buy" | "sell"
	Kind     string          `json:"kind"` // "limit" | "market"
	Price    decimal.Decimal `json:"price,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
}

type SubmitOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type CancelOrderRequest struct {
	ItemID  string `json:"itemId"`
	OrderID string `json:"orderId"`
}

type CancelOrderResponse struct {
	OK bool `json:"ok"`
}

type OrderLevel struct {
	OrderID  string          `json:"orderId"`
	PlayerID string          `json:"playerId"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Status   string          `json:"status"`
}

type OrderBookResponse struct {
	ItemID string       `json:"itemId"`
	Bids   []OrderLevel `json:"bids"`
	Asks   []OrderLevel `json:"asks"`
}

type MarketResponse struct {
	ItemID       string          `json:"itemId"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	BestBid      decimal.Decimal `json:"bestBid,omitempty"`
	HasBestBid   bool            `json:"hasBestBid"`
	BestAsk      decimal.Decimal `json:"bestAsk,omitempty"`
	HasBestAsk   bool            `json:"hasBestAsk"`
	Volatility   decimal.Decimal `json:"volatility"`
}

type InventoryLine struct {
	ItemID   string          `json:"itemId"`
	Quantity decimal.Decimal `json:"quantity"`
}

type AccountResponse struct {
	PlayerID  string          `json:"playerId"`
	Balance   decimal.Decimal `json:"balance"`
	Inventory []InventoryLine `json:"inventory"`
}

type MarketUpdateEvent struct {
	Type         string          `json:"type"` // "init" | "price" | "trade"
	ItemID       string          `json:"itemId"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	BestBid      decimal.Decimal `json:"bestBid,omitempty"`
	HasBestBid   bool            `json:"hasBestBid"`
	BestAsk      decimal.Decimal `json:"bestAsk,omitempty"`
	HasBestAsk   bool            `json:"hasBestAsk"`
	TimestampMS  int64           `json:"timestampMs"`
	High         decimal.Decimal `json:"high,omitempty"`
	Low          decimal.Decimal `json:"low,omitempty"`
	Volume       decimal.Decimal `json:"volume,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
