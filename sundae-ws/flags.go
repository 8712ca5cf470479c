package sundaews

import (
	"time"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/shoutlog/sundae-ddb"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/connectiondao"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/delivery"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/publish"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

var BroadcastOpts struct {
	Concurrency   int
	Timeout       time.Duration
	PruneTimeout  time.Duration
	Rate          float64
	RetryAttempts int
	RetryBackoff  time.Duration
	Region        string
	ConnectionTTL time.Duration
	PageSize      int
	StreamName    string
	Queue         bool
}

var ConcurrencyFlag = sundaecli.IntFlag("concurrency", "max concurrent deliveries per publish", &BroadcastOpts.Concurrency, DefaultConcurrency)
var PublishTimeoutFlag = sundaecli.DurationFlag("publish-timeout", "deadline for fanning out one message", &BroadcastOpts.Timeout, DefaultTimeout)
var PruneTimeoutFlag = sundaecli.DurationFlag("prune-timeout", "budget for removing stale connections after a publish", &BroadcastOpts.PruneTimeout, DefaultPruneTimeout)
var RateFlag = sundaecli.Float64Flag("rate", "max deliveries per second; 0 disables pacing", &BroadcastOpts.Rate, 0)
var RetryAttemptsFlag = sundaecli.IntFlag("retry-attempts", "attempts per delivery for transient failures; 1 disables retry", &BroadcastOpts.RetryAttempts, 1)
var RetryBackoffFlag = sundaecli.DurationFlag("retry-backoff", "delay before the first delivery retry", &BroadcastOpts.RetryBackoff, 100*time.Millisecond)
var RegionFlag = sundaecli.StringFlag("region", "region used to sign delivery calls", &BroadcastOpts.Region, delivery.DefaultRegion)
var ConnectionTTLFlag = sundaecli.DurationFlag("connection-ttl", "lifetime stamped on connection records; 0 disables expiry", &BroadcastOpts.ConnectionTTL, connectiondao.DefaultTTL)
var PageSizeFlag = sundaecli.IntFlag("page-size", "connections read per registry page; 0 uses the DynamoDB default", &BroadcastOpts.PageSize, 0)
var StreamNameFlag = sundaecli.StringFlag("stream-name", "Kinesis stream for queued publishes; defaults to the per-environment name", &BroadcastOpts.StreamName)
var QueueFlag = sundaecli.BoolFlag("queue", "queue publishes on the stream instead of broadcasting inline", &BroadcastOpts.Queue)

var BroadcastFlags = []cli.Flag{
	ConcurrencyFlag,
	PublishTimeoutFlag,
	PruneTimeoutFlag,
	RateFlag,
	RetryAttemptsFlag,
	RetryBackoffFlag,
	RegionFlag,
}

var RegistryFlags = []cli.Flag{
	ConnectionTTLFlag,
	PageSizeFlag,
}

// StreamName returns the configured messages stream.
func StreamName() string {
	if BroadcastOpts.StreamName != "" {
		return BroadcastOpts.StreamName
	}
	return publish.StreamName(sundaecli.CommonOpts.Env)
}

// OpenRegistry connects to the connections table named by --table-name, or
// the per-environment default.
func OpenRegistry(s *session.Session) (*connectiondao.DAO, error) {
	api, err := sundaeddb.DynamoDBAPI(s)
	if err != nil {
		return nil, err
	}
	tableName := sundaeddb.DDBOpts.TableName
	if tableName == "" {
		tableName = connectiondao.TableName(sundaecli.CommonOpts.Env)
	}
	return ConfigureRegistry(connectiondao.New(api, tableName)), nil
}

// ConfigureRegistry applies the registry flags to dao.
func ConfigureRegistry(dao *connectiondao.DAO) *connectiondao.DAO {
	dao.TTL = BroadcastOpts.ConnectionTTL
	dao.PageSize = int64(BroadcastOpts.PageSize)
	return dao
}

// NewDeliveryClient builds a delivery client from the broadcast flags.
func NewDeliveryClient(creds *credentials.Credentials) *delivery.Client {
	client := delivery.New(creds, BroadcastOpts.Region)
	client.Retry = delivery.RetryPolicy{
		MaxAttempts: BroadcastOpts.RetryAttempts,
		Backoff:     BroadcastOpts.RetryBackoff,
	}
	if BroadcastOpts.Rate > 0 {
		burst := int(BroadcastOpts.Rate)
		if burst < 1 {
			burst = 1
		}
		client.Limiter = rate.NewLimiter(rate.Limit(BroadcastOpts.Rate), burst)
	}
	return client
}

// NewBroadcaster builds a broadcaster from the broadcast flags.
func NewBroadcaster(registry Registry, deliverer Deliverer, logger zerolog.Logger, metrics MetricsRecorder) *Broadcaster {
	return &Broadcaster{
		Registry:     registry,
		Delivery:     deliverer,
		Logger:       logger,
		Metrics:      metrics,
		Concurrency:  BroadcastOpts.Concurrency,
		Timeout:      BroadcastOpts.Timeout,
		PruneTimeout: BroadcastOpts.PruneTimeout,
	}
}
