// Package gdrmongo provides a MongoDB session adapter for the gdr
// query engine. It executes query plans directly instead of rendered
// SQL; filters, sorts and page windows translate to find options, and
// counts go through CountDocuments.
package gdrmongo

import (
	"context"
	"fmt"
	"time"

	"github.com/lemmego/gdr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// =====================================
// Provider Registration
// =====================================

func init() {
	for _, driver := range SupportedDrivers() {
		gdr.RegisterPlanSessionProvider(driver, Info(), func(config gdr.Config) (gdr.PlanSession, error) {
			return NewSession(config)
		})
	}
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"mongodb", "mongo"}
}

// Info returns the provider metadata for this adapter
func Info() gdr.ProviderInfo {
	return gdr.ProviderInfo{
		Name:         "MongoDB",
		Version:      "1.0.0",
		DatabaseType: gdr.DatabaseTypeDocument,
		Features: []gdr.Feature{
			gdr.FeatureAggregation,
			gdr.FeaturePagination,
		},
	}
}

// =====================================
// Session Implementation
// =====================================

// Session implements gdr.PlanSession over a MongoDB database.
type Session struct {
	client   *mongo.Client
	database *mongo.Database
	config   gdr.Config
}

// NewSession connects to MongoDB and verifies the connection.
func NewSession(config gdr.Config) (*Session, error) {
	clientOpts := options.Client().ApplyURI(buildConnectionURI(config))

	if opts, ok := config.Options["mongo"]; ok {
		if mongoOpts, ok := opts.(map[string]interface{}); ok {
			if maxPool, ok := mongoOpts["max_pool_size"].(int); ok {
				clientOpts.SetMaxPoolSize(uint64(maxPool))
			}
			if appName, ok := mongoOpts["app_name"].(string); ok {
				clientOpts.SetAppName(appName)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to connect to MongoDB", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to ping MongoDB", err)
	}

	return &Session{
		client:   client,
		database: client.Database(config.Database),
		config:   config,
	}, nil
}

// ExecutePlan evaluates a query plan against the entity's collection.
// Templated plans carry SQL text and are rejected.
func (s *Session) ExecutePlan(ctx context.Context, plan *gdr.QueryPlan, binds *gdr.BoundArguments) (*gdr.ResultEnvelope, error) {
	if plan.Origin == gdr.OriginTemplated {
		return nil, gdr.NewError(gdr.ErrorKindUnsupported,
			"templated operations require a SQL session")
	}

	filter, err := buildFilter(plan.Filter, binds)
	if err != nil {
		return nil, err
	}
	collection := s.database.Collection(plan.Entity.TableName)

	switch plan.Projection {
	case gdr.ProjectionCount, gdr.ProjectionExists:
		n, err := collection.CountDocuments(ctx, filter)
		if err != nil {
			return nil, err
		}
		return scalarEnvelope(n), nil

	case gdr.ProjectionDelete:
		result, err := collection.DeleteMany(ctx, filter)
		if err != nil {
			return nil, err
		}
		return &gdr.ResultEnvelope{Affected: result.DeletedCount}, nil

	default:
		findOpts, err := buildFindOptions(plan, binds)
		if err != nil {
			return nil, err
		}
		cursor, err := collection.Find(ctx, filter, findOpts)
		if err != nil {
			return nil, err
		}
		return decodeCursor(ctx, plan.Entity, cursor)
	}
}

// Health checks the MongoDB connection health
func (s *Session) Health(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Database exposes the underlying database for operations outside
// the engine.
func (s *Session) Database() *mongo.Database {
	return s.database
}

// buildConnectionURI builds the MongoDB connection URI from the
// configuration.
func buildConnectionURI(config gdr.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	uri := "mongodb://"
	if config.Username != "" {
		uri += config.Username
		if config.Password != "" {
			uri += ":" + config.Password
		}
		uri += "@"
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}
	return uri + fmt.Sprintf("%s:%d/%s", host, port, config.Database)
}
