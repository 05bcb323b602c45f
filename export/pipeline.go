// Package export drives the full submission-to-CSV pipeline: it enumerates
// instances, filters and orders them by date, fans submission-level work
// (parse, decrypt, validate, flatten) out across a bounded worker pool, and
// drains the results through a single ordered writer stage.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	csvmap "github.com/opendatakit-go/export-core/csvmap"
	cryptoengine "github.com/opendatakit-go/export-core/cryptoengine"
	model "github.com/opendatakit-go/export-core/model"
	schema "github.com/opendatakit-go/export-core/schema"
	store "github.com/opendatakit-go/export-core/store"

	trace "go.opentelemetry.io/otel/trace"
	errgroup "golang.org/x/sync/errgroup"
)

const defaultWorkerCount = 4

// parseCacheSizeFactor, multiplied by the worker count, bounds how many
// fully-parsed documents the date-read phase keeps around for the
// processing phase to reuse. The cache is sized off the
// worker count rather than the submission count, so memory use does not
// grow with form size: a submission reused well after this many newer ones
// were parsed simply gets re-parsed (see parseCache for the eviction rule).
const parseCacheSizeFactor = 4

// Export runs the whole pipeline for one form: enumerate, filter, order,
// process, write, report. The returned Outcome is valid whenever err is nil.
func Export(ctx context.Context, tree model.Tree, formDir string, cfg schema.ExportConfiguration, opt ...Opt) (schema.Outcome, error) {
	o, err := applyOpts(opt)
	if err != nil {
		return 0, err
	}

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "export.Export")
		defer span.End()
	}

	if err := cfg.Validate(); err != nil {
		o.sink.Failed(tree.FormID(), err)
		return 0, err
	}

	instances, err := store.ListInstances(ctx, formDir)
	if err != nil {
		o.sink.Failed(tree.FormID(), err)
		return 0, err
	}
	total := len(instances)
	o.sink.Started(tree.FormID(), total)

	if err := os.MkdirAll(cfg.ExportDir, 0755); err != nil {
		wrapped := schema.ErrIO(cfg.ExportDir, err)
		o.sink.Failed(tree.FormID(), wrapped)
		return 0, wrapped
	}

	root := tree.Root()
	flattenOpt := model.FlattenOptions{
		SplitSelectMultiples: cfg.SplitSelectMultiples,
		RemoveGroupNames:     cfg.RemoveGroupNames,
		IncludeGeoJSON:       cfg.IncludeGeoJSON,
	}

	safeName := model.SafeName(tree.FormName())
	mainCols := csvmap.MainColumns(root, flattenOpt)
	mainHeader := csvmap.MainHeader(mainCols, tree.IsEncrypted())

	mainWriter, err := openWriter(filepath.Join(cfg.ExportDir, safeName+".csv"), mainHeader, cfg.OverwriteExistingFiles)
	if err != nil {
		o.sink.Failed(tree.FormID(), err)
		return 0, err
	}
	defer mainWriter.Close()

	repeatNodes := model.RepeatableFields(root)
	repeatCols := make(map[*model.Node][]model.ColumnSpec, len(repeatNodes))
	repeatWriters := make(map[*model.Node]*csvWriter, len(repeatNodes))
	for _, r := range repeatNodes {
		cols := csvmap.RepeatColumns(r, flattenOpt)
		repeatCols[r] = cols
		path := filepath.Join(cfg.ExportDir, fmt.Sprintf("%s-%s.csv", safeName, r.Name))
		w, err := openWriter(path, csvmap.RepeatHeader(cols), cfg.OverwriteExistingFiles)
		if err != nil {
			o.sink.Failed(tree.FormID(), err)
			return 0, err
		}
		defer w.Close()
		repeatWriters[r] = w
	}

	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = defaultWorkerCount
	}

	// The date-read pass parses every submission once to learn its ordering
	// key. The cache holds on to those parsed documents, bounded well below
	// the submission count; this pass finishes before processing starts, so
	// only the most recently read documents are still cached and every
	// other submission is parsed a second time.
	cache := newParseCache(workers * parseCacheSizeFactor)

	var sorted []item
	preSkipped := 0
	for _, path := range instances {
		xmlPath := store.SubmissionXMLPath(path)
		n, err := parseSubmission(cache, xmlPath)
		if err != nil {
			o.logger.Warn("failed to parse submission for date filtering", "path", path, "err", err)
			preSkipped++
			continue
		}
		date, hasDate := readSubmissionDate(n)
		if !cfg.DateRange.Contains(date, hasDate) {
			preSkipped++
			continue
		}
		cache.put(xmlPath, n)
		sorted = append(sorted, item{path: path, hasDate: hasDate, date: date})
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ad, bd := a.date, b.date
		if !a.hasDate {
			ad = time.Time{}
		}
		if !b.hasDate {
			bd = time.Time{}
		}
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		return a.path < b.path
	})

	tr := newTracker(total)
	for i := 0; i < preSkipped; i++ {
		tr.incSkipped()
	}

	engine := cryptoengine.New(cfg.PrivateKey)

	outcome, err := runWorkers(ctx, sorted, tree, mainCols, repeatCols, engine, cfg, o, cache, workers, mainWriter, repeatWriters, tr)
	if err != nil {
		o.sink.Failed(tree.FormID(), err)
		return 0, err
	}
	return outcome, nil
}

// item is the ordering key the worker pool dispatches by.
type item struct {
	path    string
	hasDate bool
	date    time.Time
}

// pendingResult is what one worker hands the fan-in stage: its row data
// tagged with the sequence position it must be written at.
type pendingResult struct {
	seq int
	res *procResult
}

// runWorkers fans submission-level processing out across a bounded worker
// pool and drains results through a single ordered writer stage. Results
// that complete ahead of the next sequence number to write wait in a map
// keyed by sequence number until their turn; that map has no fixed bound
// and grows while an earlier submission is still being processed.
func runWorkers(
	ctx context.Context,
	sorted []item,
	tree model.Tree,
	mainCols []model.ColumnSpec,
	repeatCols map[*model.Node][]model.ColumnSpec,
	engine *cryptoengine.Engine,
	cfg schema.ExportConfiguration,
	o opts,
	cache *parseCache,
	workers int,
	mainWriter *csvWriter,
	repeatWriters map[*model.Node]*csvWriter,
	tr *tracker,
) (schema.Outcome, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(cctx)
	g.SetLimit(workers)

	resultsCh := make(chan pendingResult, workers)
	groupErrCh := make(chan error, 1)
	go func() {
		for idx, it := range sorted {
			idx, it := idx, it
			g.Go(func() error {
				res := processSubmission(tree, it.path, it.hasDate, it.date, mainCols, repeatCols, engine, cfg, o.logger, cache)
				select {
				case resultsCh <- pendingResult{seq: idx, res: res}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		groupErrCh <- g.Wait()
		close(resultsCh)
	}()

	pending := make(map[int]*procResult, workers)
	next := 0
	var fatalErr error
	for pr := range resultsCh {
		pending[pr.seq] = pr.res
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if fatalErr != nil {
				continue // already aborting: drain without further side effects
			}
			if err := writeResult(res, mainWriter, repeatWriters, cfg, o, tree.FormID(), tr); err != nil {
				fatalErr = err
				cancel()
			}
		}
	}

	if groupErr := <-groupErrCh; groupErr != nil && fatalErr == nil {
		fatalErr = groupErr
	}
	if fatalErr != nil {
		return 0, fatalErr
	}

	runTotal, exported, skipped := tr.snapshot()
	outcome := schema.ComputeOutcome(runTotal, exported, skipped)
	switch outcome {
	case schema.AllExported:
		o.sink.Succeeded(tree.FormID(), outcome)
	default:
		o.sink.PartiallySucceeded(tree.FormID(), outcome)
	}
	return outcome, nil
}

// writeResult applies one submission's outcome: skip-and-count, or append
// its rows to the main and repeat writers, copy referenced media, and clean
// up its temporary working directory. A non-nil error here is fatal to the
// whole run (the per-submission error already decided to be recoverable
// is represented by res.skip, not by a returned error).
func writeResult(res *procResult, mainWriter *csvWriter, repeatWriters map[*model.Node]*csvWriter, cfg schema.ExportConfiguration, o opts, formID string, tr *tracker) error {
	if res.err != nil && !res.skip {
		return res.err
	}
	if res.skip {
		tr.incSkipped()
		o.logger.Warn("skipping submission", "path", res.path, "err", res.err)
		return nil
	}

	if err := mainWriter.Append(csvmap.EncodeLine(res.mainRow)); err != nil {
		return err
	}
	for node, rows := range res.repeatRows {
		w := repeatWriters[node]
		for _, row := range rows {
			if err := w.Append(csvmap.EncodeLine(row)); err != nil {
				return err
			}
		}
	}

	if cfg.ExportMedia {
		for _, name := range res.binaryFiles {
			if err := copyMedia(res.mediaSrcDir, name, cfg.ExportMediaPath); err != nil {
				o.logger.Warn("failed to copy media", "file", name, "err", err)
			}
		}
	}

	if res.tempDir != "" {
		os.RemoveAll(res.tempDir)
	}

	exported, runTotal := tr.incExported()
	o.sink.Progress(formID, exported, runTotal)
	return nil
}
