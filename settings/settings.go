package settings

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to the upper-cased flag name to form its environment
// variable, e.g. --chunk-size is read from SUITEDIRECTOR_CHUNK_SIZE.
const EnvPrefix = "SUITEDIRECTOR_"

const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

type Settings struct {
	Port      string
	LogLevel  string
	LogFormat string

	ChunkSize         int
	MaxSuiteDevices   int
	Workers           int
	DeviceConcurrency int

	QueueBackend  string
	QueueName     string
	QueueBacklog  int
	RedisHost     string
	RedisPort     string
	RedisPassword string

	ScriptPath       string
	ImageCatalogPath string
	AWSRegion        string
	KeyName          string

	SSHUser       string
	SSHKeyPath    string
	SSHPort       int
	SSHKnownHosts string

	ReadyTimeout    time.Duration
	ExecTimeout     time.Duration
	TeardownTimeout time.Duration

	LedgerDSN       string
	AlertWebhookURL string

	SessionDatabase   string
	SessionCollection string
}

// Default returns the settings used when nothing is overridden.
func Default() *Settings {
	return &Settings{
		Port:              "8000",
		LogLevel:          "info",
		LogFormat:         "text",
		ChunkSize:         5,
		MaxSuiteDevices:   1000,
		Workers:           4,
		DeviceConcurrency: 1,
		QueueBackend:      QueueBackendMemory,
		QueueName:         "device_deployer",
		QueueBacklog:      1000,
		RedisHost:         "localhost",
		RedisPort:         "6379",
		ScriptPath:        "./deploy_suite.sh",
		SSHUser:           "ec2-user",
		SSHPort:           22,
		ReadyTimeout:      10 * time.Minute,
		ExecTimeout:       60 * time.Minute,
		TeardownTimeout:   5 * time.Minute,
		SessionDatabase:   "test_suites",
		SessionCollection: "devices",
	}
}

// BindFlags registers every setting on fs, using the current values as defaults.
func (s *Settings) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Port, "port", s.Port, "Port number to run suitedirector on.")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level. One of debug, info, warn, error.")
	fs.StringVar(&s.LogFormat, "log-format", s.LogFormat, "Log format. One of text, json.")

	fs.IntVar(&s.ChunkSize, "chunk-size", s.ChunkSize, "Maximum number of devices per dispatched suite chunk.")
	fs.IntVar(&s.MaxSuiteDevices, "max-suite-devices", s.MaxSuiteDevices, "Maximum number of devices one registration may request.")
	fs.IntVar(&s.Workers, "workers", s.Workers, "Number of suite chunks processed concurrently.")
	fs.IntVar(&s.DeviceConcurrency, "device-concurrency", s.DeviceConcurrency, "Number of devices deployed concurrently within one chunk.")

	fs.StringVar(&s.QueueBackend, "queue-backend", s.QueueBackend, "Event bus backend. One of memory, redis.")
	fs.StringVar(&s.QueueName, "queue-name", s.QueueName, "Topic carrying suite chunks.")
	fs.IntVar(&s.QueueBacklog, "queue-backlog", s.QueueBacklog, "Suite chunks the memory backend holds while every worker is busy. Publishing fails once it is full.")
	fs.StringVar(&s.RedisHost, "redis-host", s.RedisHost, "Redis host, used by the redis queue backend.")
	fs.StringVar(&s.RedisPort, "redis-port", s.RedisPort, "Redis port, used by the redis queue backend.")
	fs.StringVar(&s.RedisPassword, "redis-password", s.RedisPassword, "Redis password, used by the redis queue backend.")

	fs.StringVar(&s.ScriptPath, "script-path", s.ScriptPath, "Path to the suite deployment script.")
	fs.StringVar(&s.ImageCatalogPath, "image-catalog", s.ImageCatalogPath, "YAML file mapping osType to a machine image id.")
	fs.StringVar(&s.AWSRegion, "aws-region", s.AWSRegion, "AWS region instances are launched in.")
	fs.StringVar(&s.KeyName, "key-name", s.KeyName, "EC2 key pair name attached to launched instances.")

	fs.StringVar(&s.SSHUser, "ssh-user", s.SSHUser, "User to connect to instances as.")
	fs.StringVar(&s.SSHKeyPath, "ssh-key", s.SSHKeyPath, "Path to the private key matching --key-name.")
	fs.IntVar(&s.SSHPort, "ssh-port", s.SSHPort, "SSH port on launched instances.")
	fs.StringVar(&s.SSHKnownHosts, "ssh-known-hosts", s.SSHKnownHosts, "Optional known_hosts file. Host keys are not verified when empty.")

	fs.DurationVar(&s.ReadyTimeout, "ready-timeout", s.ReadyTimeout, "How long to wait for an instance to reach the running state.")
	fs.DurationVar(&s.ExecTimeout, "exec-timeout", s.ExecTimeout, "How long the deployment script may run.")
	fs.DurationVar(&s.TeardownTimeout, "teardown-timeout", s.TeardownTimeout, "How long instance termination may take.")

	fs.StringVar(&s.LedgerDSN, "ledger-dsn", s.LedgerDSN, "Optional postgres DSN for the device run ledger.")
	fs.StringVar(&s.AlertWebhookURL, "alert-webhook-url", s.AlertWebhookURL, "Optional URL alerts are POSTed to when an instance cannot be terminated.")

	fs.StringVar(&s.SessionDatabase, "session-database", s.SessionDatabase, "Database session records are written to.")
	fs.StringVar(&s.SessionCollection, "session-collection", s.SessionCollection, "Collection session records are written to.")
}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// ApplyEnv sets every flag that was not given on the command line from its
// environment variable, when one is present.
func ApplyEnv(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		value, ok := os.LookupEnv(EnvName(f.Name))
		if !ok {
			return
		}
		if setErr := fs.Set(f.Name, value); setErr != nil {
			err = errors.Wrapf(setErr, "invalid value for %s", EnvName(f.Name))
		}
	})
	return err
}

func (s *Settings) Validate() error {
	if s.ChunkSize < 1 {
		return errors.New("chunk-size must be at least 1")
	}
	if s.MaxSuiteDevices < 1 {
		return errors.New("max-suite-devices must be at least 1")
	}
	if s.QueueBacklog < 1 {
		return errors.New("queue-backlog must be at least 1")
	}
	if s.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if s.DeviceConcurrency < 1 {
		return errors.New("device-concurrency must be at least 1")
	}
	switch s.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return errors.Errorf("unknown queue-backend %q", s.QueueBackend)
	}
	if s.QueueName == "" {
		return errors.New("queue-name missing")
	}
	if s.ScriptPath == "" {
		return errors.New("script-path missing")
	}
	if s.SSHKeyPath == "" {
		return errors.New("ssh-key missing")
	}
	if s.ReadyTimeout <= 0 || s.ExecTimeout <= 0 || s.TeardownTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

// LoadDotEnv loads the first .env file found from dir up to the filesystem
// root and returns its path, or "" when there is none. Variables already
// present in the environment are not overwritten.
func LoadDotEnv(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ".env")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			if err := godotenv.Load(candidate); err != nil {
				return "", errors.Wrapf(err, "load %s", candidate)
			}
			return candidate, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
