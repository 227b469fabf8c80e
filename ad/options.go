package ad

// Options holds the construction-time knobs of a tape. Every field
// defaults sensibly; use With* functions with
// NewJacobianTape/NewPrimalValueTape to override one or more.
type Options struct {
	// CheckTapeActivity gates every Store on the tape being Active.
	// Disable only when the caller already guarantees the tape is
	// active on every Store call, to collapse the check to zero
	// overhead.
	CheckTapeActivity bool
	// CheckZeroIndex skips pushing partials whose operand identifier is
	// the inactive identifier (0): such partials can never contribute
	// to a gradient, so recording them only wastes tape space.
	CheckZeroIndex bool
	// CheckJacobiIsZero skips pushing partials whose numeric value is
	// exactly zero, for the same reason.
	CheckJacobiIsZero bool
	// SkipZeroAdjoint skips processing a statement during the reverse
	// sweep when its left-hand-side adjoint is exactly zero: nothing
	// would propagate.
	SkipZeroAdjoint bool
	// IgnoreInvalidJacobies skips propagating a partial that evaluated
	// to NaN or ±Inf rather than letting it poison the adjoint vector.
	IgnoreInvalidJacobies bool
	// ChunkSize is the number of records per chunk for the statement
	// and operand/constant logs (C1). Zero selects chunk.DefaultChunkSize.
	ChunkSize int
	// SmallChunkSize is the chunk size used for the external-function
	// log, which is typically much shorter-lived than the statement
	// log. Zero selects chunk.DefaultChunkSize, as for ChunkSize.
	SmallChunkSize int
}

// DefaultOptions returns the most commonly useful defaults: every
// correctness-affecting check enabled, and chunk sizes tuned for a
// single evaluate-as-you-go session rather than a long-lived HPC tape.
func DefaultOptions() Options {
	return Options{
		CheckTapeActivity:     true,
		CheckZeroIndex:        true,
		CheckJacobiIsZero:     true,
		SkipZeroAdjoint:       true,
		IgnoreInvalidJacobies: false,
		ChunkSize:             1 << 16,
		SmallChunkSize:        1 << 10,
	}
}

// Option mutates an Options value; used with New*Tape.
type Option func(*Options)

// WithCheckTapeActivity overrides CheckTapeActivity.
func WithCheckTapeActivity(v bool) Option {
	return func(o *Options) { o.CheckTapeActivity = v }
}

// WithCheckZeroIndex overrides CheckZeroIndex.
func WithCheckZeroIndex(v bool) Option {
	return func(o *Options) { o.CheckZeroIndex = v }
}

// WithCheckJacobiIsZero overrides CheckJacobiIsZero.
func WithCheckJacobiIsZero(v bool) Option {
	return func(o *Options) { o.CheckJacobiIsZero = v }
}

// WithSkipZeroAdjoint overrides SkipZeroAdjoint.
func WithSkipZeroAdjoint(v bool) Option {
	return func(o *Options) { o.SkipZeroAdjoint = v }
}

// WithIgnoreInvalidJacobies overrides IgnoreInvalidJacobies.
func WithIgnoreInvalidJacobies(v bool) Option {
	return func(o *Options) { o.IgnoreInvalidJacobies = v }
}

// WithChunkSize overrides ChunkSize.
func WithChunkSize(n int) Option {
	return func(o *Options) { o.ChunkSize = n }
}

// WithSmallChunkSize overrides SmallChunkSize.
func WithSmallChunkSize(n int) Option {
	return func(o *Options) { o.SmallChunkSize = n }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CheckExpressionArguments gates the domain guards in expr.go, a
// construction-time switch meant to be turned off for production hot
// paths once a program is known to stay within each function's domain.
// It is a package-level switch rather than a per-tape Option:
// expression construction has no tape in scope to read an Option from,
// since expressions are built before Store ties them to one.
var CheckExpressionArguments = true

// StrictDomain turns the default boundary simplifications (sqrt's
// derivative at 0 defined as 0 rather than +Inf, abs's subgradient at 0
// defined as 0, pow's partial w.r.t. a non-positive base's exponent
// forced to 0) into DomainErrors instead.
var StrictDomain = false
