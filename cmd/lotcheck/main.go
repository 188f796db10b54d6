// Command lotcheck audits an inventory feed before it reaches the engine.
// It loads the file the way the server does, runs every row through the same
// normalization, and reports what the matcher will actually see: field
// coverage, rows with no stock number, and duplicate stock numbers.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/inventory"
)

func main() {
	invFile := flag.String("inventory", "data/inventory.json", "inventory feed file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	src := inventory.NewFileSource(*invFile, logger)
	recs, err := src.Snapshot(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		os.Exit(1)
	}

	rep := audit(recs)
	rep.print(os.Stdout, *invFile)
	if len(rep.noStockID) > 0 || len(rep.dupIDs) > 0 {
		os.Exit(1)
	}
}

type auditReport struct {
	total     int
	noStockID []int            // zero-based row numbers
	dupIDs    map[string][]int // canonical stock id -> rows
	coverage  map[string]int
}

// coverageFields orders the summary; each name maps onto the normalized
// feature the engine scores with.
var coverageFields = []string{"price", "year", "mileage", "body style", "fuel type", "drivetrain", "features", "description"}

func audit(recs []domain.Record) auditReport {
	rep := auditReport{
		total:    len(recs),
		dupIDs:   map[string][]int{},
		coverage: map[string]int{},
	}
	rows := map[string][]int{}

	for i, rec := range recs {
		vf := domain.ExtractFeatures(rec)

		if vf.StockID == "" {
			rep.noStockID = append(rep.noStockID, i)
		} else {
			id := strings.ToUpper(strings.TrimSpace(vf.StockID))
			rows[id] = append(rows[id], i)
		}

		if vf.Price > 0 {
			rep.coverage["price"]++
		}
		if vf.Year > 0 {
			rep.coverage["year"]++
		}
		if vf.Mileage > 0 {
			rep.coverage["mileage"]++
		}
		if vf.BodyStyle != "" {
			rep.coverage["body style"]++
		}
		if vf.FuelType != "" {
			rep.coverage["fuel type"]++
		}
		if vf.Drivetrain != "" {
			rep.coverage["drivetrain"]++
		}
		if len(vf.Features) > 0 {
			rep.coverage["features"]++
		}
		if vf.Description != "" {
			rep.coverage["description"]++
		}
	}

	for id, at := range rows {
		if len(at) > 1 {
			rep.dupIDs[id] = at
		}
	}
	return rep
}

func (r auditReport) print(w io.Writer, file string) {
	fmt.Fprintf(w, "lot audit: %s\n", file)
	fmt.Fprintf(w, "  %d records\n\n", r.total)

	fmt.Fprintln(w, "  field coverage:")
	for _, f := range coverageFields {
		fmt.Fprintf(w, "    %-12s %d/%d\n", f, r.coverage[f], r.total)
	}

	if len(r.noStockID) == 0 && len(r.dupIDs) == 0 {
		fmt.Fprintln(w, "\n  clean feed")
		return
	}

	fmt.Fprintln(w, "\n  problems:")
	if len(r.noStockID) > 0 {
		fmt.Fprintf(w, "    %d record(s) with no stock number (rows %s); they can never be pulled up by id\n",
			len(r.noStockID), joinRows(r.noStockID))
	}

	ids := make([]string, 0, len(r.dupIDs))
	for id := range r.dupIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "    duplicate stock number %s (rows %s); the engine keeps one of them\n",
			id, joinRows(r.dupIDs[id]))
	}
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, n := range rows {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
