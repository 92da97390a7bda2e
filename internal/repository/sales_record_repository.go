package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type salesRecordRepository struct {
	pool *pgxpool.Pool
}

// NewSalesRecordRepository wires a repository backed by pgxpool.
func NewSalesRecordRepository(pool *pgxpool.Pool) SalesRecordRepository {
	return &salesRecordRepository{pool: pool}
}

// upsertSalesSQL writes one batch in a single set-based statement. The
// conflict target is the natural key; the DO UPDATE guard skips rows whose
// stored values already match, so unchanged rows surface as duplicates
// (no row returned). xmax = 0 distinguishes fresh inserts from updates.
const upsertSalesSQL = `
INSERT INTO sales_records (
	id, region, country, item_type, sales_channel, order_priority,
	order_date, order_id, ship_date,
	units_sold, unit_price, unit_cost, total_revenue, total_cost, total_profit,
	user_id, file_entry_id
)
SELECT * FROM unnest(
	$1::uuid[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[],
	$7::timestamptz[], $8::bigint[], $9::timestamptz[],
	$10::float8[], $11::float8[], $12::float8[], $13::float8[], $14::float8[], $15::float8[],
	$16::uuid[], $17::uuid[]
)
ON CONFLICT (order_id, user_id) DO UPDATE SET
	region = EXCLUDED.region,
	country = EXCLUDED.country,
	item_type = EXCLUDED.item_type,
	sales_channel = EXCLUDED.sales_channel,
	order_priority = EXCLUDED.order_priority,
	order_date = EXCLUDED.order_date,
	ship_date = EXCLUDED.ship_date,
	units_sold = EXCLUDED.units_sold,
	unit_price = EXCLUDED.unit_price,
	unit_cost = EXCLUDED.unit_cost,
	total_revenue = EXCLUDED.total_revenue,
	total_cost = EXCLUDED.total_cost,
	total_profit = EXCLUDED.total_profit,
	file_entry_id = EXCLUDED.file_entry_id,
	updated_at = now()
WHERE (
	sales_records.region, sales_records.country, sales_records.item_type,
	sales_records.sales_channel, sales_records.order_priority,
	sales_records.order_date, sales_records.ship_date,
	sales_records.units_sold, sales_records.unit_price, sales_records.unit_cost,
	sales_records.total_revenue, sales_records.total_cost, sales_records.total_profit
) IS DISTINCT FROM (
	EXCLUDED.region, EXCLUDED.country, EXCLUDED.item_type,
	EXCLUDED.sales_channel, EXCLUDED.order_priority,
	EXCLUDED.order_date, EXCLUDED.ship_date,
	EXCLUDED.units_sold, EXCLUDED.unit_price, EXCLUDED.unit_cost,
	EXCLUDED.total_revenue, EXCLUDED.total_cost, EXCLUDED.total_profit
)
RETURNING (xmax = 0) AS inserted`

func (r *salesRecordRepository) UpsertBatch(ctx context.Context, records []domain.SalesRecord) (UpsertResult, error) {
	result := UpsertResult{}
	if len(records) == 0 {
		return result, nil
	}

	args := buildUpsertArgs(records)

	rows, err := r.pool.Query(
		ctx,
		upsertSalesSQL,
		args.ids, args.regions, args.countries, args.itemTypes, args.salesChannels, args.orderPriorities,
		args.orderDates, args.orderIDs, args.shipDates,
		args.unitsSold, args.unitPrices, args.unitCosts, args.totalRevenues, args.totalCosts, args.totalProfits,
		args.userIDs, args.fileEntryIDs,
	)
	if err != nil {
		return result, fmt.Errorf("failed to upsert sales records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inserted bool
		if scanErr := rows.Scan(&inserted); scanErr != nil {
			return result, fmt.Errorf("failed to scan upsert result: %w", scanErr)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return result, fmt.Errorf("failed to iterate upsert results: %w", rowsErr)
	}

	// Rows the DO UPDATE guard filtered out are already stored verbatim.
	result.Duplicates = len(records) - result.Inserted - result.Updated

	return result, nil
}

type upsertArgs struct {
	ids             []pgtype.UUID
	regions         []string
	countries       []string
	itemTypes       []string
	salesChannels   []string
	orderPriorities []string
	orderDates      []pgtype.Timestamptz
	orderIDs        []int64
	shipDates       []pgtype.Timestamptz
	unitsSold       []float64
	unitPrices      []float64
	unitCosts       []float64
	totalRevenues   []float64
	totalCosts      []float64
	totalProfits    []float64
	userIDs         []pgtype.UUID
	fileEntryIDs    []pgtype.UUID
}

func buildUpsertArgs(records []domain.SalesRecord) upsertArgs {
	n := len(records)
	args := upsertArgs{
		ids:             make([]pgtype.UUID, n),
		regions:         make([]string, n),
		countries:       make([]string, n),
		itemTypes:       make([]string, n),
		salesChannels:   make([]string, n),
		orderPriorities: make([]string, n),
		orderDates:      make([]pgtype.Timestamptz, n),
		orderIDs:        make([]int64, n),
		shipDates:       make([]pgtype.Timestamptz, n),
		unitsSold:       make([]float64, n),
		unitPrices:      make([]float64, n),
		unitCosts:       make([]float64, n),
		totalRevenues:   make([]float64, n),
		totalCosts:      make([]float64, n),
		totalProfits:    make([]float64, n),
		userIDs:         make([]pgtype.UUID, n),
		fileEntryIDs:    make([]pgtype.UUID, n),
	}

	for i, record := range records {
		args.ids[i] = pgtype.UUID{Bytes: record.ID, Valid: true}
		args.regions[i] = record.Region
		args.countries[i] = record.Country
		args.itemTypes[i] = record.ItemType
		args.salesChannels[i] = record.SalesChannel
		args.orderPriorities[i] = record.OrderPriority
		args.orderDates[i] = timestamptz(record.OrderDate)
		args.orderIDs[i] = record.OrderID
		args.shipDates[i] = timestamptz(record.ShipDate)
		args.unitsSold[i] = record.UnitsSold
		args.unitPrices[i] = record.UnitPrice
		args.unitCosts[i] = record.UnitCost
		args.totalRevenues[i] = record.TotalRevenue
		args.totalCosts[i] = record.TotalCost
		args.totalProfits[i] = record.TotalProfit
		args.userIDs[i] = pgtype.UUID{Bytes: record.UserID, Valid: true}
		if record.FileEntryID != nil {
			args.fileEntryIDs[i] = pgtype.UUID{Bytes: *record.FileEntryID, Valid: true}
		}
	}

	return args
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
