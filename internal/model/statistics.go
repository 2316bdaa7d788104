package model

import (
	"time"
)

// SalesSummary aggregates completed-sale totals for the dashboard
type SalesSummary struct {
	TotalRevenue       float64        `json:"total_revenue"`
	TotalCOGS          float64        `json:"total_cogs"`
	TotalGrossProfit   float64        `json:"total_gross_profit"`
	TransactionCount   int64          `json:"transaction_count"`
	TopSellingCrabs    []CrabRanking  `json:"top_selling_crabs"`
	StockTotals        []StockSummary `json:"stock_totals"`
	TimeRangeStartDate time.Time      `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time      `json:"time_range_end_date"`
}

// CrabRanking represents a ranked crab product based on accumulated sale quantities
type CrabRanking struct {
	CrabID        string  `json:"crab_id"`
	CrabName      string  `json:"crab_name"`
	CrabCode      string  `json:"crab_code"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// StockSummary is the remaining available stock per crab product
type StockSummary struct {
	CrabID         string  `json:"crab_id"`
	CrabName       string  `json:"crab_name"`
	CrabCode       string  `json:"crab_code"`
	TotalRemaining float64 `json:"total_remaining"`
	BatchCount     int64   `json:"batch_count"`
}
