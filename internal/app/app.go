// Package app assembles the store, services and HTTP router from config.
// It is shared by the server, the Lambda handler and catalogctl.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"small-library/internal/auth"
	"small-library/internal/config"
	"small-library/internal/graph"
	apphttp "small-library/internal/http"
	"small-library/internal/ratelimit"
	"small-library/internal/repository"
	"small-library/internal/repository/dynamo"
	"small-library/internal/repository/memory"
	"small-library/internal/repository/mongo"
	"small-library/internal/repository/sqlite"
	"small-library/internal/service"
	"small-library/internal/storage"
	"small-library/internal/validation"
)

// Store is an initialized set of repositories and a function releasing
// the underlying connection.
type Store struct {
	Repos repository.Repositories
	Close func() error
}

// OpenStore connects to the configured database driver, wraps the
// repositories with validation and creates tables and indexes.
func OpenStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*Store, error) {
	var (
		repos   repository.Repositories
		closeFn = func() error { return nil }
	)

	switch cfg.Database.Driver {
	case "memory":
		repos = memory.New().Repositories()
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		repos = sqlite.NewRepositories(db)
		closeFn = db.Close
	case "mongo":
		client, err := mongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		repos = mongo.NewRepositories(client.Database(cfg.Mongo.Database))
		closeFn = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		}
	case "dynamodb":
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		repos = dynamo.New(client, dynamo.Config{TablePrefix: cfg.DynamoDB.TablePrefix}).Repositories()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	repos = repository.WithValidation(repos, validation.New())
	if err := repos.Init(ctx); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("init repositories: %w", err)
	}

	logger.WithField("driver", cfg.Database.Driver).Info("catalog store ready")
	return &Store{Repos: repos, Close: closeFn}, nil
}

// NewStorage returns the snapshot store, or nil when no bucket is configured.
func NewStorage(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.AWS.Region)
	return storage.NewS3Service(client), nil
}

func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// Router is the gin engine serving the API plus resources to release on
// shutdown.
type Router struct {
	Engine  *gin.Engine
	limiter *ratelimit.KeyedRateLimiter
}

// Stop releases background resources held by the router.
func (r *Router) Stop() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}

// NewRouter builds services, the GraphQL schema and the HTTP routes on top
// of repos. snapshots may be nil.
func NewRouter(cfg config.Config, repos repository.Repositories, snapshots storage.Service, logger logrus.FieldLogger) (*Router, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	credentials := auth.NewCredentials(cfg.Auth.SharedPassword, cfg.Auth.SharedPasswordHash)

	catalog := service.NewCatalogService(repos)
	users := service.NewUserService(repos.Users, tokens, credentials)
	schema := graph.NewSchema(catalog, users, logger, graph.Options{MaxParallelism: cfg.GraphQL.MaxParallelism})

	var limiter *ratelimit.KeyedRateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Deps{
		Schema:  schema,
		Catalog: catalog,
		Users:   users,
		Tokens:  tokens,
		Limiter: limiter,
		Storage: snapshots,
		Log:     logger,
	}, apphttp.Options{
		CORSOrigin:     cfg.Server.CORSOrigin,
		RequestTimeout: cfg.Server.RequestTimeout,
		BatchLoading:   cfg.GraphQL.BatchLoading,
		BackupBucket:   cfg.Storage.Bucket,
		BackupPrefix:   cfg.Storage.KeyPrefix,
		TrustedProxies: cfg.Server.TrustedProxies,
		ClientIPHeader: cfg.Server.ClientIPHeader,
	})
	if err := handler.RegisterRoutes(router); err != nil {
		if limiter != nil {
			limiter.Stop()
		}
		return nil, err
	}

	return &Router{Engine: router, limiter: limiter}, nil
}
