package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"wixlint/internal/cache"
	"wixlint/internal/condition"
	"wixlint/internal/config"
	"wixlint/internal/diag"
	"wixlint/internal/document"
	"wixlint/internal/logging"
	"wixlint/internal/meta"
	"wixlint/internal/metrics"
	"wixlint/internal/rules"
	"wixlint/internal/sortutil"
	"wixlint/internal/symbols"
)

// Stats summarises one Project.Run.
type Stats struct {
	Files         int           `json:"files"`
	Excluded      int           `json:"excluded"`
	Unreadable    int           `json:"unreadable"`
	ParseFailures int           `json:"parse_failures"`
	FromCache     int           `json:"from_cache"`
	Evaluated     int           `json:"evaluated"`
	Diagnostics   int           `json:"diagnostics"`
	Rules         rules.Stats   `json:"rules"`
	Cache         cache.Stats   `json:"cache"`
	Duration      time.Duration `json:"duration_ns"`
}

// Project analyzes a set of files together so references resolve across
// them.
type Project struct {
	Config *config.Config
	// Rules defaults to the embedded rule set.
	Rules []rules.Rule
	// Cache is optional; nil evaluates every file.
	Cache   *cache.Cache
	Logger  logrus.FieldLogger
	Workers int // 0 uses Config.WorkerCount()

	// Index is the symbol index of the last Run.
	Index *symbols.Index

	stats Stats
}

type outcome struct {
	doc    *document.Document
	result diag.Result
	stats  rules.Stats
	cached bool
}

// Run analyzes files in two phases:
//
//  1. indexing, sequentially and in path order: every file is read, parsed
//     and indexed; a file that does not parse gets a single PARSE-001
//     diagnostic;
//  2. evaluation, in parallel: a fixed pool of workers, each with its own
//     condition.Evaluator, shares the finished index read-only. Cache hits
//     skip evaluation. One collector goroutine receives every outcome and
//     is the only writer to the cache.
//
// Results are ordered by file path. Cancelling ctx stops handing out files;
// Run then saves what was collected and returns ctx's error.
func (p *Project) Run(ctx context.Context, files []string) ([]diag.Result, error) {
	start := time.Now()
	cfg := p.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := logging.OrDiscard(p.Logger)
	rs := p.Rules
	if rs == nil {
		rs = DefaultRules()
	}
	an := New(rs, cfg)
	p.stats = Stats{}

	// Phase 1: indexing.
	ix := symbols.New(log)
	var (
		docs    []*document.Document
		results []diag.Result
	)
	for _, f := range dedupe(files) {
		if cfg.Excluded(f) {
			p.stats.Excluded++
			continue
		}
		p.stats.Files++
		data, err := os.ReadFile(f)
		if err != nil {
			p.stats.Unreadable++
			log.WithFields(logrus.Fields{"file": f, "error": &symbols.IndexError{File: f, Err: err}}).Warn("analysis: skipping unreadable file")
			continue
		}
		doc, err := document.Parse(string(data), f)
		if err != nil {
			p.stats.ParseFailures++
			metrics.ParseFailures.Inc()
			log.WithFields(logrus.Fields{"file": f, "error": err}).Warn("analysis: parse failed")
			results = append(results, an.ParseFailure(f, err))
			continue
		}
		ix.IndexDocument(doc)
		docs = append(docs, doc)
	}
	ix.AddStandardDirectories()
	p.Index = ix
	if p.Cache != nil {
		p.Cache.SetContext(contextKey(an, ix))
	}
	log.WithFields(logrus.Fields{
		"files":       len(docs),
		"definitions": ix.DefinitionCount(),
		"references":  ix.ReferenceCount(),
		"rules":       an.Engine().Len(),
	}).Debug("analysis: index built")

	// Phase 2: evaluation.
	workers := p.Workers
	if workers <= 0 {
		workers = cfg.WorkerCount()
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *document.Document)
	outcomes := make(chan outcome, workers)
	collected := make(chan []diag.Result, 1)

	go func() {
		var out []diag.Result
		for o := range outcomes {
			out = append(out, o.result)
			if o.cached {
				p.stats.FromCache++
				continue
			}
			p.stats.Evaluated++
			p.stats.Rules.Merge(o.stats)
			if p.Cache != nil {
				if err := p.Cache.Put(o.doc.Path, o.doc.Source, o.result); err != nil {
					log.WithFields(logrus.Fields{"file": o.doc.Path, "error": err}).Warn("analysis: cache write failed")
				}
			}
		}
		collected <- out
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers + 1)
	g.Go(func() error {
		defer close(jobs)
		for _, d := range docs {
			select {
			case jobs <- d:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			ev := condition.NewEvaluator()
			for d := range jobs {
				outcomes <- p.evaluate(an, ix, ev, d)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}
	close(outcomes)
	results = append(results, <-collected...)

	if p.Cache != nil {
		if err := p.Cache.Save(); err != nil {
			log.WithFields(logrus.Fields{"dir": p.Cache.Dir(), "error": err}).Warn("analysis: cache save failed")
		}
		p.stats.Cache = p.Cache.Stats()
	}
	if runErr != nil {
		return nil, runErr
	}

	diag.SortResults(results)
	for _, r := range results {
		p.stats.Diagnostics += len(r.Diagnostics)
		for _, d := range r.Diagnostics {
			metrics.Diagnostics.WithLabelValues(d.Severity.String()).Inc()
		}
	}
	p.stats.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"files":       p.stats.Files,
		"evaluated":   p.stats.Evaluated,
		"cached":      p.stats.FromCache,
		"diagnostics": p.stats.Diagnostics,
		"duration":    p.stats.Duration,
	}).Info("analysis: done")
	return results, nil
}

func (p *Project) evaluate(an *Analyzer, ix symbols.Resolver, ev *condition.Evaluator, doc *document.Document) outcome {
	if p.Cache != nil {
		if r, ok := p.Cache.Get(doc.Path, doc.Source); ok {
			return outcome{doc: doc, result: *r, cached: true}
		}
	}
	r, st := an.Analyze(doc, ix, ev)
	return outcome{doc: doc, result: r, stats: st}
}

// Stats returns the counters of the last Run.
func (p *Project) Stats() Stats { return p.stats }

// contextKey ties cached results to the rule selection and to the project's
// symbols, since references resolve across files.
func contextKey(an *Analyzer, ix *symbols.Index) string {
	return fmt.Sprintf("%016x", xxh3.HashString(an.Digest()+"|"+ix.Digest()))
}

func dedupe(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		k := filepath.Clean(f)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return sortutil.StablePathSort(out)
}

// LoadRules returns the embedded rules plus every rule file named by cfg.
// A rule from a file replaces an embedded rule with the same id.
func LoadRules(cfg *config.Config, log logrus.FieldLogger) ([]rules.Rule, error) {
	rs := append([]rules.Rule(nil), DefaultRules()...)
	if cfg == nil {
		return rs, nil
	}
	pos := make(map[string]int, len(rs))
	for i, r := range rs {
		pos[r.ID] = i
	}
	for _, path := range cfg.RuleFiles() {
		set, err := rules.LoadFile(path, rules.LoadOptions{Logger: log})
		if err != nil {
			return nil, err
		}
		for _, r := range set.Rules {
			if i, ok := pos[r.ID]; ok {
				rs[i] = r
				continue
			}
			pos[r.ID] = len(rs)
			rs = append(rs, r)
		}
	}
	return rs, nil
}

// AnalyzeProject loads rules and, when enabled, the cache named by cfg and
// runs a Project over files.
func AnalyzeProject(ctx context.Context, files []string, cfg *config.Config, log logrus.FieldLogger) ([]diag.Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	rs, err := LoadRules(cfg, log)
	if err != nil {
		return nil, err
	}
	p := &Project{Config: cfg, Rules: rs, Logger: log}
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.CacheDir(), meta.Version, log)
		if err != nil {
			logging.OrDiscard(log).WithFields(logrus.Fields{"error": err}).Warn("analysis: cache unavailable")
		} else {
			p.Cache = c
		}
	}
	return p.Run(ctx, files)
}
