package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/csvflow/ingestd/internal/domain"
	"github.com/csvflow/ingestd/internal/repository"
)

// CommitResult reports the outcome of one batch write.
type CommitResult struct {
	Inserted   int
	Updated    int
	Duplicates int
	// Invalid counts rows rejected before the write because they carry no
	// usable natural key.
	Invalid int
}

// Processed returns the number of rows that changed store state.
func (r CommitResult) Processed() int {
	return r.Inserted + r.Updated
}

// batchCommitter is the worker-facing commit contract.
type batchCommitter interface {
	Commit(ctx context.Context, batch []domain.SalesRecord) (CommitResult, error)
}

// Committer performs deduplicating bulk writes of parsed rows. Rows the
// store itself would reject one by one (missing order id) are screened out
// first, and duplicate natural keys within a batch are collapsed
// last-occurrence-wins, so one malformed row never costs the whole batch.
type Committer struct {
	sales  repository.SalesRecordRepository
	logger *slog.Logger
}

// NewCommitter wires a committer over the sales record store.
func NewCommitter(sales repository.SalesRecordRepository, logger *slog.Logger) *Committer {
	return &Committer{sales: sales, logger: logger}
}

// Commit writes one batch. An empty batch is a no-op and never reaches the
// store.
func (c *Committer) Commit(ctx context.Context, batch []domain.SalesRecord) (CommitResult, error) {
	result := CommitResult{}
	if len(batch) == 0 {
		return result, nil
	}

	kept := make([]domain.SalesRecord, 0, len(batch))
	position := make(map[int64]int, len(batch))
	for _, record := range batch {
		if !record.HasNaturalKey() {
			result.Invalid++
			c.logger.Debug("dropping row without order id", "region", record.Region, "country", record.Country)
			continue
		}
		if idx, seen := position[record.OrderID]; seen {
			// Same order twice in one batch: the later row wins.
			kept[idx] = record
			result.Duplicates++
			continue
		}
		position[record.OrderID] = len(kept)
		kept = append(kept, record)
	}

	if len(kept) == 0 {
		return result, nil
	}

	upserted, err := c.sales.UpsertBatch(ctx, kept)
	if err != nil {
		return result, fmt.Errorf("bulk upsert failed: %w", err)
	}

	result.Inserted = upserted.Inserted
	result.Updated = upserted.Updated
	result.Duplicates += upserted.Duplicates

	return result, nil
}
