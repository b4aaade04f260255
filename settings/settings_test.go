package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(s *Settings) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	s.BindFlags(fs)
	return fs
}

func TestDefaults(t *testing.T) {
	s := Default()
	assert.Equal(t, 5, s.ChunkSize)
	assert.Equal(t, 1000, s.MaxSuiteDevices)
	assert.Equal(t, 1000, s.QueueBacklog)
	assert.Equal(t, "device_deployer", s.QueueName)
	assert.Equal(t, "ec2-user", s.SSHUser)
	assert.Equal(t, "test_suites", s.SessionDatabase)
	assert.Equal(t, "devices", s.SessionCollection)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SUITEDIRECTOR_CHUNK_SIZE", EnvName("chunk-size"))
	assert.Equal(t, "SUITEDIRECTOR_PORT", EnvName("port"))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SUITEDIRECTOR_CHUNK_SIZE", "3")
	t.Setenv("SUITEDIRECTOR_READY_TIMEOUT", "90s")
	t.Setenv("SUITEDIRECTOR_PORT", "9999")

	s := Default()
	fs := newFlagSet(s)
	require.NoError(t, fs.Parse([]string{"--port", "8080"}))
	require.NoError(t, ApplyEnv(fs))

	assert.Equal(t, 3, s.ChunkSize)
	assert.Equal(t, 90*time.Second, s.ReadyTimeout)
	// command line wins over the environment
	assert.Equal(t, "8080", s.Port)
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	t.Setenv("SUITEDIRECTOR_WORKERS", "many")

	s := Default()
	fs := newFlagSet(s)
	require.NoError(t, fs.Parse(nil))

	err := ApplyEnv(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUITEDIRECTOR_WORKERS")
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		s := Default()
		s.SSHKeyPath = "/keys/id_ed25519"
		return s
	}

	require.NoError(t, valid().Validate())

	testCases := []struct {
		name   string
		mutate func(s *Settings)
		errMsg string
	}{
		{"zero chunk size", func(s *Settings) { s.ChunkSize = 0 }, "chunk-size must be at least 1"},
		{"zero device limit", func(s *Settings) { s.MaxSuiteDevices = 0 }, "max-suite-devices must be at least 1"},
		{"zero backlog", func(s *Settings) { s.QueueBacklog = 0 }, "queue-backlog must be at least 1"},
		{"zero workers", func(s *Settings) { s.Workers = 0 }, "workers must be at least 1"},
		{"zero device concurrency", func(s *Settings) { s.DeviceConcurrency = 0 }, "device-concurrency must be at least 1"},
		{"unknown backend", func(s *Settings) { s.QueueBackend = "kafka" }, `unknown queue-backend "kafka"`},
		{"missing ssh key", func(s *Settings) { s.SSHKeyPath = "" }, "ssh-key missing"},
		{"missing script", func(s *Settings) { s.ScriptPath = "" }, "script-path missing"},
		{"zero timeout", func(s *Settings) { s.ExecTimeout = 0 }, "timeouts must be positive"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid()
			tc.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Equal(t, tc.errMsg, err.Error())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SUITEDIRECTOR_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("SUITEDIRECTOR_TEST_DOTENV", "")
	os.Unsetenv("SUITEDIRECTOR_TEST_DOTENV")

	path, err := LoadDotEnv(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".env"), path)
	assert.Equal(t, "loaded", os.Getenv("SUITEDIRECTOR_TEST_DOTENV"))
}
