package models

// Requests for the dashboard HTTP endpoints.

type SymbolSearchRequest struct {
	Keywords string `query:"keywords" json:"keywords" validate:"required,max=100"`
}

type StockDataRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=20,printascii"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=20,printascii"`
	From   string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}
