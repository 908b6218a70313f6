package pipeline

import (
	"fmt"
	"io"
	"log"

	"github.com/wheeler-lab/cloudfb/cloud"
	"github.com/wheeler-lab/cloudfb/decode"
	"github.com/wheeler-lab/cloudfb/observe"
	"github.com/wheeler-lab/cloudfb/score"
)

// Config holds every tunable the pipeline needs: pruning parameters,
// domain thresholds, score thresholds, database size, and the matrix
// recycling/observability toggles (spec §6 "Config").
type Config struct {
	Alpha     float32
	Beta      float32
	Gamma     int
	HardLimit int

	Thresholds decode.Thresholds
	Score      score.Thresholds
	DBSize     float64

	MatrixRecycling bool
	Observer        observe.Observer
	Logger          *log.Logger
}

// logger returns cfg.Logger, or a logger that discards output if unset
// (kortschak-loopy's stdlib-only logging convention: nil means silent,
// never a panic).
func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns spec §6's baseline configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:           12,
		Beta:            20,
		Gamma:           5,
		HardLimit:       0,
		Thresholds:      decode.DefaultThresholds(),
		Score:           score.Thresholds{ViterbiP: 0.02, CloudP: 0.02, BoundForwardP: 1e-3, ReportE: 10},
		DBSize:          1,
		MatrixRecycling: true,
	}
}

// Option configures a Config in place (katalvlaran-lvlath/builder's
// functional-option idiom). Validation happens here, not in Run:
// malformed option values panic immediately at construction.
type Option func(*Config)

// WithAlpha sets the per-diagonal x-drop (spec §4.1). Panics if alpha < 0.
func WithAlpha(alpha float32) Option {
	if alpha < 0 {
		panic(fmt.Sprintf("pipeline: WithAlpha: alpha must be >= 0, got %v", alpha))
	}
	return func(c *Config) { c.Alpha = alpha }
}

// WithBeta sets the global x-drop (spec §4.1). Panics if beta < 0.
func WithBeta(beta float32) Option {
	if beta < 0 {
		panic(fmt.Sprintf("pipeline: WithBeta: beta must be >= 0, got %v", beta))
	}
	return func(c *Config) { c.Beta = beta }
}

// WithGamma sets the free initial antidiagonal count (spec §4.1). Panics
// if gamma < 0.
func WithGamma(gamma int) Option {
	if gamma < 0 {
		panic(fmt.Sprintf("pipeline: WithGamma: gamma must be >= 0, got %d", gamma))
	}
	return func(c *Config) { c.Gamma = gamma }
}

// WithHardLimit sets the cell-count cap (0 means unlimited).
func WithHardLimit(limit int) Option {
	if limit < 0 {
		panic(fmt.Sprintf("pipeline: WithHardLimit: limit must be >= 0, got %d", limit))
	}
	return func(c *Config) { c.HardLimit = limit }
}

// WithThresholds overrides the domain-decomposition thresholds (spec §4.5).
func WithThresholds(th decode.Thresholds) Option {
	return func(c *Config) { c.Thresholds = th }
}

// WithScoreThresholds overrides the four pass/fail thresholds (spec §6).
func WithScoreThresholds(th score.Thresholds) Option {
	return func(c *Config) { c.Score = th }
}

// WithDBSize sets the database size used for E-value conversion. Panics
// if dbSize <= 0.
func WithDBSize(dbSize float64) Option {
	if dbSize <= 0 {
		panic(fmt.Sprintf("pipeline: WithDBSize: dbSize must be > 0, got %v", dbSize))
	}
	return func(c *Config) { c.DBSize = dbSize }
}

// WithMatrixRecycling toggles the ownership-transfer recycling path
// between Forward/Backward/Posterior (spec §5/§9).
func WithMatrixRecycling(enabled bool) Option {
	return func(c *Config) { c.MatrixRecycling = enabled }
}

// WithObserver threads a non-nil observe.Observer through the DP kernels
// (spec §9's debugger replacement).
func WithObserver(obs observe.Observer) Option {
	return func(c *Config) { c.Observer = obs }
}

// WithLogger sets the logger Run reports degeneracy/domain diagnostics to.
// nil (the default) discards all output.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// NewConfig builds a Config from DefaultConfig() plus the given options.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// CloudParams projects cfg's pruning fields into a cloud.Params.
func (c Config) CloudParams() cloud.Params {
	return cloud.Params{Alpha: c.Alpha, Beta: c.Beta, Gamma: c.Gamma, HardLimit: c.HardLimit}
}
