package quill

import (
	"go.uber.org/zap"

	"github.com/quillsearch/quill/internal/analysis"
	"github.com/quillsearch/quill/internal/scoring"
	"github.com/quillsearch/quill/internal/writer"
)

// config collects every knob the facade threads into the storage,
// writer, and searcher layers.
type config struct {
	readOnly      bool
	lockTimeoutMs int
	mmap          bool

	ramLimitMB       int
	procs            int
	mergeTierFactor  float64
	mergeMinSegments int

	expansionLimit int
	fieldParams    map[string]scoring.FieldParams

	analyzer analysis.Analyzer
	quality  writer.QualityFn
	logger   *zap.SugaredLogger
}

func defaultConfig() config {
	return config{
		ramLimitMB:     64,
		expansionLimit: 1024,
		logger:         zap.NewNop().Sugar(),
	}
}

// Option configures an Index at open time.
type Option func(*config)

// ReadOnly forbids obtaining a writer from the opened index.
func ReadOnly() Option {
	return func(c *config) { c.readOnly = true }
}

// WithLockTimeout bounds how long a writer polls for the index write
// lock before surfacing a locked error. Zero tries exactly once.
func WithLockTimeout(ms int) Option {
	return func(c *config) { c.lockTimeoutMs = ms }
}

// WithMMap serves segment file reads from a memory mapping instead of
// positioned reads on the open file. Only meaningful for
// filesystem-backed indexes.
func WithMMap() Option {
	return func(c *config) { c.mmap = true }
}

// WithRAMLimit sets the writer's accumulation budget in megabytes;
// exceeding it spills a sorted run to disk.
func WithRAMLimit(mb int) Option {
	return func(c *config) { c.ramLimitMB = mb }
}

// WithProcs advises how many workers merges may use. Advisory only.
func WithProcs(n int) Option {
	return func(c *config) { c.procs = n }
}

// WithMergePolicy tunes the tiered merge policy: segments are grouped
// into logarithmic size tiers with the given factor, and a tier holding
// at least minSegments is merged into one.
func WithMergePolicy(tierFactor float64, minSegments int) Option {
	return func(c *config) {
		c.mergeTierFactor = tierFactor
		c.mergeMinSegments = minSegments
	}
}

// WithExpansionLimit bounds per-segment term expansion of wildcard,
// prefix, range, and fuzzy queries. Zero means unlimited.
func WithExpansionLimit(n int) Option {
	return func(c *config) { c.expansionLimit = n }
}

// WithFieldParams overrides the BM25F tuning for one field.
func WithFieldParams(field string, params scoring.FieldParams) Option {
	return func(c *config) {
		if c.fieldParams == nil {
			c.fieldParams = make(map[string]scoring.FieldParams)
		}
		c.fieldParams[field] = params
	}
}

// WithAnalyzer replaces the default tokenizer for indexing.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(c *config) { c.analyzer = a }
}

// WithLogger threads a structured logger through the writer and merge
// paths. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *config) { c.logger = log }
}
