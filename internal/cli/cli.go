// Package cli implements the topograph command-line interface.
//
// The commands load an incident topology snapshot from a JSON file or from
// MongoDB (mongo://<snapshot-id>) and inspect, reduce or draw it:
//   - inspect: summary of the snapshot and its rank rows
//   - closure: dependency closure of one entity, locally or through the
//     topology service
//   - ranks: layered rank rows as a table or JSON
//   - aggregate: merge indistinguishable entities
//   - render: DOT, SVG or PNG node-link diagrams
//   - cache: manage the local response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging and --trace to
// print OpenTelemetry spans to stderr.
//
// # Environment
//
// Connection settings default from the environment:
//
//	TOPOGRAPH_TOPOLOGY_URL      topology service base URL
//	TOPOGRAPH_REDIS_ADDR        shared topology cache (host:port or redis:// URL)
//	TOPOGRAPH_MONGO_URI         snapshot document store
//	TOPOGRAPH_MONGO_DB          database name (default "aiops")
//	TOPOGRAPH_MONGO_COLLECTION  collection name (default "incident_snapshots")
//	XDG_CACHE_HOME              file cache root (~/.cache/topograph by default)
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/incidentlab/topograph/pkg/cache"
	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
	"github.com/incidentlab/topograph/pkg/pipeline"
	"github.com/incidentlab/topograph/pkg/store"
	"github.com/incidentlab/topograph/pkg/topology"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "topograph"

	// redisPrefix namespaces topograph keys in a shared Redis.
	redisPrefix = "topograph:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config
}

// Config holds connection settings. Flags override these values.
type Config struct {
	TopologyURL     string
	RedisAddr       string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// ConfigFromEnv reads the TOPOGRAPH_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		TopologyURL:     getEnv("TOPOGRAPH_TOPOLOGY_URL", ""),
		RedisAddr:       getEnv("TOPOGRAPH_REDIS_ADDR", ""),
		MongoURI:        getEnv("TOPOGRAPH_MONGO_URI", ""),
		MongoDatabase:   getEnv("TOPOGRAPH_MONGO_DB", store.DefaultMongoDatabase),
		MongoCollection: getEnv("TOPOGRAPH_MONGO_COLLECTION", store.DefaultMongoCollection),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// New creates a CLI writing logs to w at the given level. Configuration is
// read from the environment.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: ConfigFromEnv(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Runner Factory
// =============================================================================

// sourceFor returns the snapshot source for ref. MongoDB is only contacted
// for mongo:// references, and its documents are cached on disk unless
// noCache is set.
func (c *CLI) sourceFor(ctx context.Context, ref string, noCache bool) (store.Source, error) {
	router := &store.Router{Files: store.NewFileSource()}
	if !store.IsMongoRef(ref) {
		return router, nil
	}
	if c.Config.MongoURI == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: TOPOGRAPH_MONGO_URI is not set", ref)
	}
	mongo, err := store.NewMongoSource(ctx, store.MongoConfig{
		URI:        c.Config.MongoURI,
		Database:   c.Config.MongoDatabase,
		Collection: c.Config.MongoCollection,
	})
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("connected to mongodb", "database", c.Config.MongoDatabase, "collection", c.Config.MongoCollection)

	fc := newCache(noCache)
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.Config.MongoDatabase+"/"+c.Config.MongoCollection)
	router.Mongo = store.NewCachedSource(mongo, fc, keyer, 0)
	return router, nil
}

// serviceOpts are the flags shared by commands that query the topology
// service.
type serviceOpts struct {
	url     string
	redis   string
	noCache bool
	refresh bool
}

// newFetcher builds a topology client. Responses are cached in Redis when
// an address is configured and on disk otherwise.
func (c *CLI) newFetcher(ctx context.Context, opts serviceOpts) (incident.TopologyFetcher, func() error, error) {
	url := firstNonEmpty(opts.url, c.Config.TopologyURL)
	if url == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidConfig, "topology service URL is required (--topology-url or TOPOGRAPH_TOPOLOGY_URL)")
	}

	var cc cache.Cache
	switch addr := firstNonEmpty(opts.redis, c.Config.RedisAddr); {
	case opts.noCache:
		cc = cache.NewNullCache()
	case addr != "":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: addr, Prefix: redisPrefix})
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to redis")
		}
		c.Logger.Debug("using redis topology cache", "addr", addr)
		cc = rc
	default:
		cc = newCache(false)
	}

	client, err := topology.NewClient(url,
		topology.WithCache(cc, nil),
		topology.WithRefresh(opts.refresh),
	)
	if err != nil {
		cc.Close()
		return nil, nil, err
	}
	c.Logger.Debug("topology client", "client", client.String())
	return client, cc.Close, nil
}

// newRunner creates a pipeline runner reading ref. fetcher may be nil when
// no service closure is requested. Callers close the runner.
func (c *CLI) newRunner(ctx context.Context, ref string, noCache bool, fetcher incident.TopologyFetcher) (*pipeline.Runner, error) {
	source, err := c.sourceFor(ctx, ref, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(source, fetcher, c.Logger), nil
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// newCache opens the file cache, falling back to no caching when the cache
// directory is unusable.
func newCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/topograph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// outputPath derives an output file path from the snapshot reference when
// output is empty: "snap.json" becomes "snap.<suffix>", and
// "mongo://42" becomes "42.<suffix>".
func outputPath(output, ref, suffix string) string {
	if output != "" {
		return output
	}
	base := strings.TrimPrefix(ref, store.MongoScheme)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "." + suffix
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
