package query

import (
	"context"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/bigquery"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
)

const (
	timeSeriesAmountSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  SUM(COALESCE(amount_cents, 0)) AS value
FROM %s
WHERE %s
  AND type = @factType
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topLabsByNetSQL = `
SELECT
  lab_id AS label,
  SUM(CASE WHEN type = 'earned' THEN amount_cents ELSE -amount_cents END) AS value
FROM %s
WHERE %s
  AND occurred_at BETWEEN @start AND @end
GROUP BY lab_id
ORDER BY value DESC
LIMIT 5
`

	averageRepairCostSQL = `
SELECT SAFE_DIVIDE(SUM(COALESCE(amount_cents, 0)), NULLIF(COUNT(DISTINCT repair_id), 0)) AS value
FROM %s
WHERE %s
  AND type = 'earned'
  AND occurred_at BETWEEN @start AND @end
`

	factCountsSQL = `
SELECT
  COUNTIF(type = 'earned') AS repairs_completed,
  COUNTIF(type = 'paid') AS payments_recorded
FROM %s
WHERE %s
  AND occurred_at BETWEEN @start AND @end
`
)

// SettlementService provides dashboard data from BigQuery lab_settlement_facts.
type SettlementService interface {
	Query(ctx context.Context, req types.SettlementQueryRequest) (*types.SettlementQueryResponse, error)
}

type settlementService struct {
	client   *bigquery.Client
	tableRef string
}

// NewSettlementService builds a service backed by BigQuery.
func NewSettlementService(client *bigquery.Client, project, dataset, table string) (SettlementService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset, and table are required")
	}
	return &settlementService{
		client:   client,
		tableRef: fmt.Sprintf("`%s.%s.%s`", project, dataset, table),
	}, nil
}

func (s *settlementService) Query(ctx context.Context, req types.SettlementQueryRequest) (*types.SettlementQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	labClause := buildLabClause(req.LabID)
	params := s.baseParams(req)

	earned, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesAmountSQL, s.tableRef, labClause), withFactType(params, "earned"))
	if err != nil {
		return nil, err
	}
	paid, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesAmountSQL, s.tableRef, labClause), withFactType(params, "paid"))
	if err != nil {
		return nil, err
	}

	topLabs, err := s.queryTopLabels(ctx, fmt.Sprintf(topLabsByNetSQL, s.tableRef, labClause), params)
	if err != nil {
		return nil, err
	}

	averageCost, err := s.queryAverage(ctx, fmt.Sprintf(averageRepairCostSQL, s.tableRef, labClause), params)
	if err != nil {
		return nil, err
	}

	repairsCompleted, paymentsRecorded, err := s.queryCounts(ctx, fmt.Sprintf(factCountsSQL, s.tableRef, labClause), params)
	if err != nil {
		return nil, err
	}

	return &types.SettlementQueryResponse{
		EarnedSeries:      earned,
		PaidSeries:        paid,
		TopLabsByNet:      topLabs,
		AverageRepairCost: averageCost,
		RepairsCompleted:  repairsCompleted,
		PaymentsRecorded:  paymentsRecorded,
	}, nil
}

func validateRequest(req types.SettlementQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func buildLabClause(labID string) string {
	if labID == "" {
		return "TRUE"
	}
	return "lab_id = @labID"
}

func (s *settlementService) baseParams(req types.SettlementQueryRequest) []cloudbigquery.QueryParameter {
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
	if req.LabID != "" {
		params = append(params, cloudbigquery.QueryParameter{Name: "labID", Value: req.LabID})
	}
	return params
}

func withFactType(params []cloudbigquery.QueryParameter, factType string) []cloudbigquery.QueryParameter {
	out := make([]cloudbigquery.QueryParameter, 0, len(params)+1)
	out = append(out, params...)
	return append(out, cloudbigquery.QueryParameter{Name: "factType", Value: factType})
}

func (s *settlementService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}

	var points []types.TimeSeriesPoint
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *settlementService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top labels: %w", err)
	}

	var result []types.LabelValue
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading top label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *settlementService) queryAverage(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (float64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, fmt.Errorf("query average repair cost: %w", err)
	}
	var row struct {
		Value cloudbigquery.NullFloat64 `bigquery:"value"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, nil
		}
		return 0, fmt.Errorf("reading average row: %w", err)
	}
	if !row.Value.Valid {
		return 0, nil
	}
	return row.Value.Float64, nil
}

func (s *settlementService) queryCounts(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (int64, int64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, 0, fmt.Errorf("query fact counts: %w", err)
	}
	var row struct {
		RepairsCompleted int64 `bigquery:"repairs_completed"`
		PaymentsRecorded int64 `bigquery:"payments_recorded"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading fact counts row: %w", err)
	}
	return row.RepairsCompleted, row.PaymentsRecorded, nil
}
