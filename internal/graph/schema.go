// Package graph exposes the catalog as a GraphQL schema.
package graph

import (
	"context"
	_ "embed"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"

	"small-library/internal/service"
)

//go:embed schema.graphql
var schemaSDL string

// Options tunes schema execution.
type Options struct {
	// MaxParallelism bounds how many resolvers run concurrently per request.
	MaxParallelism int
}

// NewSchema parses the schema and binds it to the services.
func NewSchema(catalog service.CatalogService, users service.UserService, log logrus.FieldLogger, opts Options) *graphql.Schema {
	schemaOpts := []graphql.SchemaOpt{
		graphql.Logger(panicLogger{log: log}),
	}
	if opts.MaxParallelism > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxParallelism(opts.MaxParallelism))
	}
	return graphql.MustParseSchema(schemaSDL, NewResolver(catalog, users), schemaOpts...)
}

// panicLogger routes resolver panics recovered by the executor to logrus.
type panicLogger struct {
	log logrus.FieldLogger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.log.WithField("panic", value).Error("graphql: resolver panic")
}
