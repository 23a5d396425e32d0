package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkade-os/txeditor/internal/core/application"
	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/arkade-os/txeditor/internal/infrastructure/db"
	"github.com/arkade-os/txeditor/internal/infrastructure/feetarget"
	esplorafees "github.com/arkade-os/txeditor/internal/infrastructure/feetarget/esplora"
	watermillnotifier "github.com/arkade-os/txeditor/internal/infrastructure/notifier/watermill"
	timescheduler "github.com/arkade-os/txeditor/internal/infrastructure/scheduler/gocron"
	intervalscheduler "github.com/arkade-os/txeditor/internal/infrastructure/scheduler/interval"
	txbuilder "github.com/arkade-os/txeditor/internal/infrastructure/tx-builder/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
		"redis":    {},
		"inmemory": {},
	}
	supportedSchedulers = supportedType{
		"gocron":   {},
		"interval": {},
	}
	supportedNetworks = map[string]*chaincfg.Params{
		chaincfg.MainNetParams.Name:       &chaincfg.MainNetParams,
		chaincfg.TestNet3Params.Name:      &chaincfg.TestNet3Params,
		chaincfg.SigNetParams.Name:        &chaincfg.SigNetParams,
		chaincfg.RegressionNetParams.Name: &chaincfg.RegressionNetParams,
	}
	supportedUnits = map[string]btcutil.AmountUnit{
		"btc":  btcutil.AmountBTC,
		"mbtc": btcutil.AmountMilliBTC,
		"ubtc": btcutil.AmountMicroBTC,
		"sat":  btcutil.AmountSatoshi,
	}
)

type Config struct {
	Datadir  string
	LogLevel int
	Network  string

	DbType              string
	DbDir               string
	DbUrl               string
	DbAutoCreate        bool
	RedisUrl            string
	RedisTxNumOfRetries int
	SchedulerType       string
	TickInterval        time.Duration
	EsploraURL          string
	EsploraTimeout      time.Duration
	AmountUnit          string
	RelayFeePerKb       int64
	AllowPreview        bool
	NotifierBufferSize  int64

	repo      ports.RepoManager
	scheduler ports.Ticker
	feeSource ports.FeeEstimateSource
	selector  ports.FeeTargetSelector
	notifier  *watermillnotifier.Notifier
	network   *chaincfg.Params
}

func (c *Config) String() string {
	clone := *c
	if clone.DbUrl != "" {
		clone.DbUrl = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = btcutil.AppDataDir("txeditor", false)
	defaultLogLevel            = 4
	defaultNetwork             = chaincfg.MainNetParams.Name
	defaultDbType              = "badger"
	defaultSchedulerType       = "gocron"
	defaultTickInterval        = 500 // milliseconds
	defaultRedisTxNumOfRetries = 10
	defaultEsploraURL          = "https://blockstream.info/api"
	defaultEsploraTimeout      = 10 // seconds
	defaultAmountUnit          = "sat"
	defaultRelayFeePerKb       = int64(txrules.DefaultRelayFeePerKb)
	defaultAllowPreview        = true
	defaultNotifierBufferSize  = 64
)

// env returns a list of strings prefixed with `TXEDITOR_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("TXEDITOR_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	Network = &cli.StringFlag{
		Usage: "Bitcoin network (mainnet, testnet3, signet, regtest)",
		Name:  "network", EnvVars: env("NETWORK"),
		Value: defaultNetwork,
	}

	DbType = &cli.StringFlag{
		Usage: "Preferences store type (badger, sqlite, postgres, redis, inmemory)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	DbUrl = &cli.StringFlag{
		Usage: "Postgres connection url if TXEDITOR_DB_TYPE is set to postgres",
		Name:  "pg-db-url", EnvVars: env("PG_DB_URL"),
	}

	DbAutoCreate = &cli.BoolFlag{
		Usage: "Create the postgres database if it does not exist",
		Name:  "pg-db-autocreate", EnvVars: env("PG_DB_AUTOCREATE"),
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if TXEDITOR_DB_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of retries for Redis write operations in case of conflicts",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisTxNumOfRetries,
	}

	SchedulerType = &cli.StringFlag{
		Usage: "Scheduler driving the periodic tx updates (gocron, interval)",
		Name:  "scheduler-type", EnvVars: env("SCHEDULER_TYPE"),
		Value: defaultSchedulerType,
	}

	TickInterval = &cli.IntFlag{
		Usage: "Interval in milliseconds between two checks for pending tx updates",
		Name:  "tick-interval", EnvVars: env("TICK_INTERVAL"),
		Value: defaultTickInterval,
	}

	EsploraURL = &cli.StringFlag{
		Usage: "Esplora API URL used for dynamic fee estimates, empty to disable them",
		Name:  "esplora-url", EnvVars: env("ESPLORA_URL"),
		Value: defaultEsploraURL,
	}

	EsploraTimeout = &cli.IntFlag{
		Usage: "Timeout in seconds of the requests to the esplora API",
		Name:  "esplora-timeout", EnvVars: env("ESPLORA_TIMEOUT"),
		Value: defaultEsploraTimeout,
	}

	AmountUnit = &cli.StringFlag{
		Usage: "Unit of the displayed amounts (btc, mbtc, ubtc, sat)",
		Name:  "amount-unit", EnvVars: env("AMOUNT_UNIT"),
		Value: defaultAmountUnit,
	}

	RelayFeePerKb = &cli.Int64Flag{
		Usage: "Minimum relay feerate in sat/kvB, txs below it can't be sent",
		Name:  "relay-fee", EnvVars: env("RELAY_FEE"),
		Value: defaultRelayFeePerKb,
	}

	AllowPreview = &cli.BoolFlag{
		Usage: "Allow to accept a tx for preview instead of sending it",
		Name:  "allow-preview", EnvVars: env("ALLOW_PREVIEW"),
		Value: defaultAllowPreview,
	}

	NotifierBufferSize = &cli.Int64Flag{
		Usage: "Number of pending notifications buffered per subscriber",
		Name:  "notifier-buffer-size", EnvVars: env("NOTIFIER_BUFFER_SIZE"),
		Value: int64(defaultNotifierBufferSize),
	}
)

var Flags = []cli.Flag{
	Datadir,
	LogLevel,
	Network,
	DbType,
	DbUrl,
	DbAutoCreate,
	RedisUrl,
	RedisTxNumOfRetries,
	SchedulerType,
	TickInterval,
	EsploraURL,
	EsploraTimeout,
	AmountUnit,
	RelayFeePerKb,
	AllowPreview,
	NotifierBufferSize,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

	var dbUrl string
	if c.String(DbType.Name) == "postgres" {
		dbUrl = c.String(DbUrl.Name)
		if dbUrl == "" {
			return nil, fmt.Errorf("db type set to 'postgres' but db url is missing")
		}
	}

	var redisUrl string
	if c.String(DbType.Name) == "redis" {
		redisUrl = c.String(RedisUrl.Name)
		if redisUrl == "" {
			return nil, fmt.Errorf("db type set to 'redis' but redis url is missing")
		}
	}

	return &Config{
		Datadir:             c.String(Datadir.Name),
		LogLevel:            c.Int(LogLevel.Name),
		Network:             c.String(Network.Name),
		DbType:              c.String(DbType.Name),
		DbDir:               dbPath,
		DbUrl:               dbUrl,
		DbAutoCreate:        c.Bool(DbAutoCreate.Name),
		RedisUrl:            redisUrl,
		RedisTxNumOfRetries: c.Int(RedisTxNumOfRetries.Name),
		SchedulerType:       c.String(SchedulerType.Name),
		TickInterval:        time.Duration(c.Int(TickInterval.Name)) * time.Millisecond,
		EsploraURL:          c.String(EsploraURL.Name),
		EsploraTimeout:      time.Duration(c.Int(EsploraTimeout.Name)) * time.Second,
		AmountUnit:          c.String(AmountUnit.Name),
		RelayFeePerKb:       c.Int64(RelayFeePerKb.Name),
		AllowPreview:        c.Bool(AllowPreview.Name),
		NotifierBufferSize:  c.Int64(NotifierBufferSize.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

// Validate checks the config and wires the services it selects.
func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf(
			"scheduler type not supported, please select one of: %s",
			supportedSchedulers,
		)
	}
	network, ok := supportedNetworks[c.Network]
	if !ok {
		return fmt.Errorf("network not supported, please select one of: %s", networkNames())
	}
	if _, ok := supportedUnits[c.AmountUnit]; !ok {
		return fmt.Errorf("amount unit not supported, please select one of: btc | mbtc | ubtc | sat")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval, must be positive")
	}
	if c.EsploraTimeout <= 0 {
		return fmt.Errorf("invalid esplora timeout, must be positive")
	}
	if c.RelayFeePerKb < 0 {
		return fmt.Errorf("invalid relay fee, must not be negative")
	}
	if c.RedisTxNumOfRetries <= 0 {
		return fmt.Errorf("invalid redis number of retries, must be positive")
	}
	if c.NotifierBufferSize < 0 {
		return fmt.Errorf("invalid notifier buffer size, must not be negative")
	}
	c.network = network

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.feeEstimateSource(); err != nil {
		return err
	}
	if err := c.feeTargetSelector(); err != nil {
		return err
	}
	c.notifier = watermillnotifier.NewNotifier(c.NotifierBufferSize)

	return nil
}

func (c *Config) RepoManager() ports.RepoManager {
	return c.repo
}

func (c *Config) FeeTargetSelector() ports.FeeTargetSelector {
	return c.selector
}

func (c *Config) Notifier() *watermillnotifier.Notifier {
	return c.notifier
}

// TxBuilder returns the wallet tx builder spending utxos to destination.
func (c *Config) TxBuilder(
	utxos []txbuilder.Utxo, destination string, amount domain.OutputValue,
	opts ...txbuilder.Option,
) (ports.TxBuilder, error) {
	opts = append(opts, txbuilder.WithRelayFee(btcutil.Amount(c.RelayFeePerKb)))
	return txbuilder.NewTxBuilder(c.network, utxos, destination, amount, c.selector, opts...)
}

// Editor opens a new fee editing session on the txs made by builder.
func (c *Config) Editor(
	builder ports.TxBuilder, amount domain.OutputValue,
) (*application.Editor, error) {
	return application.NewEditor(
		builder, c.selector, c.repo.Preferences(), amount,
		application.WithTicker(c.scheduler, c.TickInterval),
		application.WithNotifier(c.notifier),
		application.WithAmountUnit(supportedUnits[c.AmountUnit]),
		application.WithRelayFee(btcutil.Amount(c.RelayFeePerKb)),
		application.WithPreview(c.AllowPreview),
	)
}

// Close releases the wired services.
func (c *Config) Close() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.notifier != nil {
		if err := c.notifier.Close(); err != nil {
			log.WithError(err).Warn("failed to close notifier")
		}
	}
	if c.repo != nil {
		c.repo.Close()
	}
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	case "postgres":
		dataStoreConfig = []interface{}{c.DbUrl, c.DbAutoCreate}
	case "redis":
		dataStoreConfig = []interface{}{c.RedisUrl, c.RedisTxNumOfRetries}
	case "inmemory":
	default:
		return fmt.Errorf("unknown db type")
	}

	if c.DbType == "badger" || c.DbType == "sqlite" {
		if err := makeDirectoryIfNotExists(c.DbDir); err != nil {
			return fmt.Errorf("failed to create db dir: %s", err)
		}
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.Ticker
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	case "interval":
		svc = intervalscheduler.NewScheduler()
	default:
		return fmt.Errorf("unknown scheduler type")
	}

	svc.Start()
	c.scheduler = svc
	return nil
}

func (c *Config) feeEstimateSource() error {
	if c.EsploraURL == "" {
		log.Debug("no esplora url, dynamic fee estimates disabled")
		return nil
	}

	svc, err := esplorafees.NewFeeEstimateSource(
		c.EsploraURL, esplorafees.WithHTTPClient(&http.Client{Timeout: c.EsploraTimeout}),
	)
	if err != nil {
		return fmt.Errorf("invalid esplora url: %s", err)
	}

	c.feeSource = svc
	return nil
}

func (c *Config) feeTargetSelector() error {
	svc, err := feetarget.NewSelector(c.repo.Preferences(), c.feeSource)
	if err != nil {
		return err
	}

	c.selector = svc
	return nil
}

func networkNames() string {
	names := make([]string, 0, len(supportedNetworks))
	for name := range supportedNetworks {
		names = append(names, name)
	}
	return strings.Join(names, " | ")
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
