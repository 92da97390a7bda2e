package ingestion

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/google/uuid"
)

// Column labels expected in the header row of source files (case-sensitive).
const (
	columnRegion        = "Region"
	columnCountry       = "Country"
	columnItemType      = "Item Type"
	columnSalesChannel  = "Sales Channel"
	columnOrderPriority = "Order Priority"
	columnOrderDate     = "Order Date"
	columnOrderID       = "Order ID"
	columnShipDate      = "Ship Date"
	columnUnitsSold     = "Units Sold"
	columnUnitPrice     = "Unit Price"
	columnUnitCost      = "Unit Cost"
	columnTotalRevenue  = "Total Revenue"
	columnTotalCost     = "Total Cost"
	columnTotalProfit   = "Total Profit"
)

// errEmptyRow marks rows with no data cells at all; callers skip them.
var errEmptyRow = errors.New("empty row")

var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Parser maps header-labelled rows onto sales records. Field-level parse
// failures never discard a row: numerics fall back to NaN and dates to nil,
// leaving the store layer to accept or reject the record as a whole.
type Parser struct {
	columns     map[string]int
	ownerID     uuid.UUID
	fileEntryID uuid.UUID
}

// NewParser builds a parser from the file's header row. Unknown columns are
// ignored; missing columns yield zero values for their fields.
func NewParser(header []string, ownerID uuid.UUID, fileEntryID uuid.UUID) *Parser {
	columns := make(map[string]int, len(header))
	for idx, label := range header {
		columns[strings.TrimSpace(label)] = idx
	}
	return &Parser{
		columns:     columns,
		ownerID:     ownerID,
		fileEntryID: fileEntryID,
	}
}

// Parse converts one data row into a sales record. The only error it
// returns is errEmptyRow; every field-level problem is recovered with a
// sentinel value instead.
func (p *Parser) Parse(row []string) (domain.SalesRecord, error) {
	if isEmptyRow(row) {
		return domain.SalesRecord{}, errEmptyRow
	}

	fileEntryID := p.fileEntryID
	return domain.SalesRecord{
		ID:            uuid.New(),
		Region:        p.cell(row, columnRegion),
		Country:       p.cell(row, columnCountry),
		ItemType:      p.cell(row, columnItemType),
		SalesChannel:  p.cell(row, columnSalesChannel),
		OrderPriority: p.cell(row, columnOrderPriority),
		OrderDate:     p.dateCell(row, columnOrderDate),
		OrderID:       p.intCell(row, columnOrderID),
		ShipDate:      p.dateCell(row, columnShipDate),
		UnitsSold:     p.floatCell(row, columnUnitsSold),
		UnitPrice:     p.floatCell(row, columnUnitPrice),
		UnitCost:      p.floatCell(row, columnUnitCost),
		TotalRevenue:  p.floatCell(row, columnTotalRevenue),
		TotalCost:     p.floatCell(row, columnTotalCost),
		TotalProfit:   p.floatCell(row, columnTotalProfit),
		UserID:        p.ownerID,
		FileEntryID:   &fileEntryID,
	}, nil
}

func (p *Parser) cell(row []string, column string) string {
	idx, ok := p.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (p *Parser) floatCell(row []string, column string) float64 {
	raw := p.cell(row, column)
	if raw == "" {
		return math.NaN()
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

// intCell parses the natural-key order identifier. A malformed value yields
// zero, which the committer treats as "no natural key".
func (p *Parser) intCell(row []string, column string) int64 {
	raw := p.cell(row, column)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func (p *Parser) dateCell(row []string, column string) *time.Time {
	raw := p.cell(row, column)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if value, err := time.Parse(layout, raw); err == nil {
			return &value
		}
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
