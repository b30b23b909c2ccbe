package session

// ResultCollector turns the context of a processed session into a result.
// It runs once per successful run and must copy whatever it needs out of
// the context.
type ResultCollector[I, R any] interface {
	Collect(ctx *Context[I]) (R, error)
}

// CollectorFunc adapts a function to ResultCollector.
type CollectorFunc[I, R any] func(ctx *Context[I]) (R, error)

// Collect implements ResultCollector.
func (f CollectorFunc[I, R]) Collect(ctx *Context[I]) (R, error) {
	return f(ctx)
}
