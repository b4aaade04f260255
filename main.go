package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/suitedirector/suitedirector/compute"
	"github.com/suitedirector/suitedirector/db"
	"github.com/suitedirector/suitedirector/director"
	"github.com/suitedirector/suitedirector/log"
	ledgermetrics "github.com/suitedirector/suitedirector/prometheus"
	"github.com/suitedirector/suitedirector/recorder"
	"github.com/suitedirector/suitedirector/remote"
	"github.com/suitedirector/suitedirector/settings"
	"github.com/suitedirector/suitedirector/types"
	"github.com/vmihailenco/taskq/v3"
)

func newRootCmd() *cobra.Command {
	s := settings.Default()

	cmd := &cobra.Command{
		Use:          "suitedirector",
		Short:        "Deploy test suites to freshly provisioned EC2 instances",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.ApplyEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			if err := log.Setup(s.LogLevel, s.LogFormat); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, s)
		},
	}
	s.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, s *settings.Settings) error {
	script, err := os.ReadFile(s.ScriptPath)
	if err != nil {
		return errors.Wrap(err, "Error loading deployment script")
	}

	images, err := compute.LoadImageCatalog(s.ImageCatalogPath)
	if err != nil {
		return err
	}

	provisioner, err := compute.NewEC2ProvisionerFromConfig(ctx, s.AWSRegion, compute.EC2Options{
		KeyName: s.KeyName,
		Images:  images,
	})
	if err != nil {
		return err
	}

	executor, err := remote.NewSSHExecutorFromFile(s.SSHKeyPath, remote.SSHOptions{
		User:           s.SSHUser,
		Port:           s.SSHPort,
		KnownHostsPath: s.SSHKnownHosts,
	})
	if err != nil {
		return err
	}

	sessions := recorder.NewMongoRecorder(recorder.MongoOptions{
		Database:   s.SessionDatabase,
		Collection: s.SessionCollection,
	})

	var reporter director.Reporter
	var runs director.RunLister
	if s.LedgerDSN != "" {
		database, err := db.Open(s.LedgerDSN, s.LogLevel == "debug")
		if err != nil {
			return err
		}
		defer db.Close(database)

		ledger := db.NewLedger(database)
		reporter = director.LedgerReporter{Store: ledger}
		runs = ledger
		ledgermetrics.Metrics(database)
	}

	var alerter director.Alerter = director.LogAlerter{}
	if s.AlertWebhookURL != "" {
		alerter = director.NewWebhookAlerter(s.AlertWebhookURL, nil)
	}

	pipeline := director.NewPipeline(provisioner, executor, sessions, reporter, alerter, director.PipelineOptions{
		Script:            script,
		ReadyTimeout:      s.ReadyTimeout,
		ExecTimeout:       s.ExecTimeout,
		TeardownTimeout:   s.TeardownTimeout,
		DeviceConcurrency: s.DeviceConcurrency,
	})

	queue, err := newQueue(s)
	if err != nil {
		return err
	}
	backlog := s.QueueBacklog
	if s.QueueBackend == settings.QueueBackendRedis {
		backlog = 0
	}
	bus := director.NewEventBus(queue, backlog)
	defer bus.Close()

	// subscribed before the listener opens, so no chunk can be published
	// without a consumer
	err = bus.Subscribe(func(ctx context.Context, chunk *types.SuiteChunk) error {
		pipeline.Run(ctx, chunk)
		return nil
	})
	if err != nil {
		return err
	}
	bus.Start(ctx)

	director.Metrics()

	server := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           director.NewRouter(director.NewRegistrar(bus, s.ChunkSize, s.MaxSuiteDevices), runs),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error(err)
		}
	}()

	log.Infof("suitedirector is listening on :%s (queue %s, %s backend)", s.Port, bus.Topic(), s.QueueBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newQueue(s *settings.Settings) (taskq.Queue, error) {
	if s.QueueBackend != settings.QueueBackendRedis {
		return director.NewQueue(s, nil)
	}
	return director.NewQueue(s, director.RedisClient(s))
}

func main() {
	if path, err := settings.LoadDotEnv("."); err != nil {
		log.Fatal(err)
	} else if path != "" {
		log.Infof("loaded environment from %s", path)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
