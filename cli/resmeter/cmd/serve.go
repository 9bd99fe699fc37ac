package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/resmeter/resmeter/logger"
	"github.com/resmeter/resmeter/rpc"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultMaxBodySize   = 4 * 1024 * 1024 // 4MB
)

type serveConfig struct {
	Base        *baseConfiguration
	DBFile      string
	Address     string
	MaxBodySize int64
}

// newServeCmd creates a new cobra command which serves the ledger resources over REST.
func newServeCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &serveConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "serve",
		Short: "Starts the REST API serving account resources and dynamic properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRunFun(cmd.Context(), config)
		},
	}

	cmd.Flags().StringVar(&config.DBFile, "db", "", fmt.Sprintf("path to the ledger database file (default: $RM_HOME/%s)", defaultDBFile))
	cmd.Flags().StringVar(&config.Address, "address", defaultServerAddress, "address to listen for REST requests, in the form \"host:port\"")
	cmd.Flags().Int64Var(&config.MaxBodySize, "max-body-size", defaultMaxBodySize, "maximum number of bytes the server will read parsing the request body")
	return cmd
}

func serveRunFun(ctx context.Context, config *serveConfig) error {
	obs := config.Base.observe
	log := obs.Logger()

	l, err := openLedger(config.Base.dbFilename(config.DBFile), obs)
	if err != nil {
		return err
	}
	defer l.Close()

	server := rpc.NewRESTServer(config.Address, config.MaxBodySize, obs,
		rpc.MetricsEndpoints(obs.MetricsHandler()),
		rpc.AccountEndpoints(l.bp, l.ep, l.state, log),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		errch := make(chan error, 1)
		go func() {
			log.InfoContext(ctx, fmt.Sprintf("REST server starting on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errch <- err
				return
			}
			errch <- nil
		}()

		select {
		case <-ctx.Done():
			if err := server.Close(); err != nil {
				log.WarnContext(ctx, "REST server close error", logger.Error(err))
			}
			if exitErr := <-errch; exitErr != nil {
				log.WarnContext(ctx, "REST server exited with error", logger.Error(exitErr))
			} else {
				log.InfoContext(ctx, "REST server exited")
			}
			return ctx.Err()
		case err := <-errch:
			return err
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
