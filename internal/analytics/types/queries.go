package types

import "time"

// SettlementQueryRequest carries the input parameters for settlement
// analytics queries. An empty LabID scopes the query to the whole network.
type SettlementQueryRequest struct {
	LabID string
	Start time.Time
	End   time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as a lab ranked by net balance.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SettlementQueryResponse wraps the settlement KPIs for the admin dashboard.
type SettlementQueryResponse struct {
	EarnedSeries      []TimeSeriesPoint `json:"earned"`
	PaidSeries        []TimeSeriesPoint `json:"paid"`
	TopLabsByNet      []LabelValue      `json:"top_labs_by_net"`
	AverageRepairCost float64           `json:"average_repair_cost_cents"`
	RepairsCompleted  int64             `json:"repairs_completed"`
	PaymentsRecorded  int64             `json:"payments_recorded"`
}
