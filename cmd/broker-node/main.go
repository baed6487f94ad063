// Command broker-node is the composition root: it wires the log store,
// subscriber registry, ack tracker, pkid allocator, connection router,
// dispatch supervisor, and the ambient admin/auth/placement collaborators
// into one running node. Every collaborator is constructed exactly once here
// and injected; nothing holds a package-level singleton.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shareleaderd/broker/internal/ack"
	"github.com/shareleaderd/broker/internal/acl"
	"github.com/shareleaderd/broker/internal/config"
	"github.com/shareleaderd/broker/internal/dispatch"
	"github.com/shareleaderd/broker/internal/httpadmin"
	"github.com/shareleaderd/broker/internal/jwtauth"
	"github.com/shareleaderd/broker/internal/logstore"
	"github.com/shareleaderd/broker/internal/metrics"
	"github.com/shareleaderd/broker/internal/pkid"
	"github.com/shareleaderd/broker/internal/placement"
	"github.com/shareleaderd/broker/internal/registry"
	"github.com/shareleaderd/broker/internal/router"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "broker-node",
	Short: "Runs a shared-subscription leader dispatcher node",
	Long: `broker-node runs one node of a shared-subscription dispatch cluster.

It reads committed records for the ShareLeaderKeys this node leads, picks a
recipient per the configured strategy, delivers at the lowest of the original
publish's QoS, the subscriber's maximum QoS and the configured max_qos, and
durably commits progress, handing off leadership
whenever the placement center reassigns a key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cluster-config.yaml", "path to the cluster configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("broker-node exited with error", "error", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cluster, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logStore, closeStore, err := openLogStore(cluster)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.NewMemory()
	tracker := ack.NewTracker()
	alloc := pkid.New(cluster.AckTimeout.Value)
	rtr := router.New()

	promReg := prometheus.NewRegistry()
	metricsSink := metrics.NewPrometheus(promReg)

	dispatchOpts, err := cluster.DispatchOptions()
	if err != nil {
		return err
	}
	dispatchOpts = append(dispatchOpts, dispatch.WithLogger(log), dispatch.WithMetrics(metricsSink))

	supervisor := dispatch.NewSupervisor(logStore, reg, tracker, alloc, rtr, dispatchOpts...)
	supervisor.Start(ctx)
	defer supervisor.Stop()

	var jwtMgr *jwtauth.Manager
	if cluster.JWT.Secret != "" {
		jwtMgr = jwtauth.NewManager([]byte(cluster.JWT.Secret),
			jwtauth.IssuerOptions{Issuer: cluster.JWT.Issuer, Audience: cluster.JWT.Audience, TTL: cluster.JWT.TTL},
			jwtauth.ValidatorOptions{Issuer: cluster.JWT.Issuer, Audience: cluster.JWT.Audience},
		)
	}

	aclChecker := acl.NewChecker(nil)

	if cluster.Placement.Target != "" {
		pc, err := placement.Dial(cluster.Placement.Target, cluster.Placement.NodeID, log)
		if err != nil {
			return fmt.Errorf("dial placement center: %w", err)
		}
		defer pc.Close()
		go pc.Poll(ctx, reg, cluster.Placement.PollInterval.Value)
	}

	admin := httpadmin.New(supervisor, jwtMgr, aclChecker, promReg, log)
	httpServer := &http.Server{Addr: cluster.AdminListenAddr, Handler: admin}
	go func() {
		log.Info("admin surface listening", "addr", cluster.AdminListenAddr, "tls", cluster.TLS.Enabled)
		var err error
		if cluster.TLS.Enabled {
			err = httpServer.ListenAndServeTLS(cluster.TLS.CertFile, cluster.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("admin surface stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cluster.AckTimeout.Value)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	<-ctx.Done()
	log.Info("shutting down broker-node")
	return nil
}

func openLogStore(cluster config.Cluster) (logstore.Store, func(), error) {
	if cluster.Storage.PebbleDir == "" {
		store := logstore.NewMemory()
		return store, func() {}, nil
	}
	store, err := logstore.OpenPebble(cluster.Storage.PebbleDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open pebble store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
