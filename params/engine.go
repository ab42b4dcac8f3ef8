package params

import (
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
)

const (
	EngineDBName = "routecat.db"
)

var (
	ActivitiesBucket  = []byte("activities")
	TracksBucket      = []byte("tracks")
	TimeStreamsBucket = []byte("timestreams")
	SignaturesBucket  = []byte("signatures")
	GroupsBucket      = []byte("groups")
	SectionsBucket    = []byte("sections")
	PotentialsBucket  = []byte("potentials")
	NamesBucket       = []byte("names")
	MetaBucket        = []byte("meta")
)

var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".routecat")
}()

var (
	// TrackCacheSize bounds the raw-track LRU. Tracks are the largest
	// objects the engine holds, keep this small.
	TrackCacheSize = 256

	// ConsensusCacheSize bounds the consensus-polyline LRU.
	ConsensusCacheSize = 1024

	// MatchCacheTTL expires cached pairwise comparison results.
	MatchCacheTTL = 1 * time.Hour

	// MatchCacheSize bounds the comparison ttlcache.
	MatchCacheSize = uint64(65536)
)

// EngineConfig configures a persistent engine instance.
type EngineConfig struct {
	// DataDir holds the bolt database and any flat exports.
	DataDir string

	// Match and Detection hold the algorithm tunables. Nil fields get
	// defaults at Open.
	Match     *MatchConfig
	Detection *DetectionConfig

	// SmoothTracks runs a Kalman filter over incoming tracks before
	// signature building.
	SmoothTracks bool

	// RetentionDays expires activities older than this many days at
	// cleanup. 0 keeps everything.
	RetentionDays int

	// Influx, when non-nil, enables the metrics reporter.
	Influx *InfluxConfig
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		DataDir:   DatadirRoot,
		Match:     DefaultMatchConfig,
		Detection: DefaultDetectionConfig(),
	}
}

// InfluxConfig points the metrics reporter at an InfluxDB instance.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func InfluxConfigFromEnv() *InfluxConfig {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		return nil
	}
	return &InfluxConfig{
		URL:    url,
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Bucket: os.Getenv("INFLUXDB_BUCKET"),
	}
}

// AWS_BUCKETNAME is the fallback S3 bucket for datadir backups, for
// running routecat backup without flags.
var AWS_BUCKETNAME = os.Getenv("AWS_BUCKETNAME")
