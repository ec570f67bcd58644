// Package logger provides slog logger factories for the server.
//
// [New] builds a JSON logger writing to stdout. [NewWithSentry] adds a
// Sentry fan-out so warnings and errors also reach Sentry; with an empty
// DSN it degrades to stdout only, which keeps local development free of
// external dependencies. [NewNope] discards everything and is the default
// inside components when no logger is injected.
//
// Context extractors let request-scoped values (request IDs and the like)
// be attached to every record logged with that context:
//
//	log := logger.New(func(ctx context.Context) (slog.Attr, bool) {
//	    if id, ok := ctx.Value(requestIDKey{}).(string); ok {
//	        return slog.String("request_id", id), true
//	    }
//	    return slog.Attr{}, false
//	})
package logger
