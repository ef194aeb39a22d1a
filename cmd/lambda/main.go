// Command lambda serves the catalog API from AWS Lambda behind an API
// Gateway HTTP API. Use the dynamodb or mongo database driver; local files
// do not survive between invocations.
package main

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"small-library/internal/app"
	"small-library/internal/config"
	"small-library/internal/logging"
)

// sourceIPHeader carries the caller address API Gateway observed. It is
// always overwritten, so clients cannot choose their rate-limit key.
const sourceIPHeader = "X-Lambda-Source-Ip"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, "json")
	if err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	cfg.Server.ClientIPHeader = sourceIPHeader

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	snapshots, err := app.NewStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := app.NewRouter(cfg, store.Repos, snapshots, logger)
	if err != nil {
		logger.Fatalf("build router: %v", err)
	}

	lambda.Start(newHandler(router.Engine))
}

type handlerFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

func newHandler(engine *gin.Engine) handlerFunc {
	adapter := ginadapter.NewV2(engine)
	return func(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContext(ctx, withSourceIP(event))
	}
}

// withSourceIP returns event with sourceIPHeader set to the request
// context's source address, dropping any client-sent variant.
func withSourceIP(event events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	headers := make(map[string]string, len(event.Headers)+1)
	for k, v := range event.Headers {
		if strings.EqualFold(k, sourceIPHeader) {
			continue
		}
		headers[k] = v
	}
	if ip := event.RequestContext.HTTP.SourceIP; ip != "" {
		headers[strings.ToLower(sourceIPHeader)] = ip
	}
	event.Headers = headers
	return event
}
