package ticketing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Bulk imports run the whole file in one transaction: a bad line aborts
// every line before it too.
//
//	stock:         price,color,startSerial,endSerial
//	distributions: date,staffName,rideName,startSerial
//
// A first line whose leading field is the column name ("price" / "date")
// is treated as a header.

// ImportStock creates one bundle per line.
func (e *Engine) ImportStock(ctx context.Context, scope ScopeID, r io.Reader) ([]StockBundle, error) {
	rows, err := readBulk(r, 4, "price")
	if err != nil {
		return nil, err
	}

	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	bundles := make([]StockBundle, 0, len(rows))
	for _, row := range rows {
		in, err := parseStockRow(row.fields)
		if err != nil {
			return nil, &LineError{Line: row.line, Err: err}
		}
		b, err := e.createBundleTx(ctx, tx, scope, in)
		if err != nil {
			return nil, &LineError{Line: row.line, Err: err}
		}
		bundles = append(bundles, *b)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("stock imported", "scope_id", scope, "bundles", len(bundles))
	for _, b := range bundles {
		e.emit(ctx, Event{Type: EventBundleCreated, ScopeID: scope, BundleID: b.ID, Tickets: b.Size()})
	}
	return bundles, nil
}

// ImportDistributions hands out one bundle per line. Staff and rates are
// resolved by name and must already exist; the bundle is the available
// bundle of scope starting at startSerial.
func (e *Engine) ImportDistributions(ctx context.Context, scope ScopeID, r io.Reader) ([]Distribution, error) {
	rows, err := readBulk(r, 4, "date")
	if err != nil {
		return nil, err
	}

	tx, err := e.begin(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]Distribution, 0, len(rows))
	for _, row := range rows {
		in, err := e.resolveDistributionRow(ctx, tx, scope, row.fields)
		if err != nil {
			return nil, &LineError{Line: row.line, Err: err}
		}
		d, err := e.distributeTx(ctx, tx, scope, in)
		if err != nil {
			return nil, &LineError{Line: row.line, Err: err}
		}
		out = append(out, *d)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.log.Info("distributions imported", "scope_id", scope, "distributions", len(out))
	for _, d := range out {
		e.emit(ctx, Event{
			Type:           EventDistributionCreated,
			ScopeID:        scope,
			DistributionID: d.ID,
			BundleID:       d.BundleID,
			StaffID:        d.StaffID,
			Tickets:        d.End - d.Start + 1,
		})
	}
	return out, nil
}

type bulkRow struct {
	line   int
	fields []string
}

func readBulk(r io.Reader, width int, header string) ([]bulkRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []bulkRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &LineError{Line: perr.Line, Err: fmt.Errorf("%w: %v", ErrInvalidInput, perr.Err)}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rows) == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), header) {
			continue
		}
		if len(rec) != width {
			return nil, &LineError{Line: line, Err: fmt.Errorf("%w: want %d fields, got %d", ErrInvalidInput, width, len(rec))}
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, bulkRow{line: line, fields: rec})
	}
	return rows, nil
}

func parseStockRow(f []string) (BundleInput, error) {
	price, err := decimal.NewFromString(f[0])
	if err != nil {
		return BundleInput{}, fmt.Errorf("%w: bad price %q", ErrInvalidInput, f[0])
	}
	start, err := parseSerial(f[2])
	if err != nil {
		return BundleInput{}, err
	}
	end, err := parseSerial(f[3])
	if err != nil {
		return BundleInput{}, err
	}
	return BundleInput{UnitPrice: price, Color: f[1], Start: start, End: end}, nil
}

func (e *Engine) resolveDistributionRow(ctx context.Context, tx Tx, scope ScopeID, f []string) (DistributeInput, error) {
	date, err := ParseDate(f[0])
	if err != nil {
		return DistributeInput{}, err
	}
	staff, err := tx.StaffByName(ctx, f[1])
	if err != nil {
		return DistributeInput{}, err
	}
	rate, err := tx.RateByName(ctx, f[2])
	if err != nil {
		return DistributeInput{}, err
	}
	start, err := parseSerial(f[3])
	if err != nil {
		return DistributeInput{}, err
	}
	bundle, err := bundleStartingAt(ctx, tx, scope, start)
	if err != nil {
		return DistributeInput{}, err
	}
	return DistributeInput{StaffID: staff.ID, RateID: rate.ID, BundleID: bundle, Date: date}, nil
}

// bundleStartingAt finds the single available bundle of scope whose range
// starts at start, whatever its color.
func bundleStartingAt(ctx context.Context, q Queries, scope ScopeID, start int64) (BundleID, error) {
	all, err := q.ListBundles(ctx, BundleFilter{ScopeID: scope, Start: &start})
	if err != nil {
		return "", err
	}
	var live, available []StockBundle
	for _, b := range all {
		if b.Status == BundleCancelled {
			continue
		}
		live = append(live, b)
		if b.Status == BundleAvailable {
			available = append(available, b)
		}
	}
	switch {
	case len(live) == 0:
		return "", notFound("bundle starting at", start)
	case len(available) == 0:
		return "", fmt.Errorf("%w: bundle starting at %d is %s", ErrNotAvailable, start, live[0].Status)
	case len(available) > 1:
		return "", fmt.Errorf("%w: %d available bundles start at %d", ErrInvalidInput, len(available), start)
	}
	return available[0].ID, nil
}

func parseSerial(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad serial %q", ErrInvalidInput, s)
	}
	return n, nil
}
