// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// suretyd runs a standalone flight-surety API server: the engines over
// a local database, with the JSON-RPC service and event feed mounted
// under /ext/surety.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"

	"github.com/luxfi/surety"
	"github.com/luxfi/surety/components/ledger"
)

const apiPathPrefix = "/ext/surety"

func main() {
	cmd := &cobra.Command{
		Use:   "suretyd",
		Short: "Runs a standalone flight-surety API server",
		RunE:  runFunc,
	}
	AddFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFunc(cmd *cobra.Command, args []string) error {
	config, err := ParseFlags(cmd.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.NewLogger("suretyd")

	var db database.Database
	if config.DBDir == "" {
		db = memdb.New()
	} else {
		db, err = badgerdb.New(config.DBDir, nil, "", nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
	}

	vm := &surety.VM{}
	if err := vm.Initialize(
		db,
		config.ConfigBytes,
		surety.Genesis{
			Owner:            config.Owner,
			FirstAirline:     config.FirstAirline,
			FirstAirlineName: config.FirstAirlineName,
		},
		ledger.NewMemory(),
		logger,
	); err != nil {
		return fmt.Errorf("failed to initialize vm: %w", err)
	}
	defer func() {
		if err := vm.Shutdown(); err != nil {
			logger.Error("failed to shut down vm", "error", err)
		}
	}()

	handlers, err := vm.CreateHandlers()
	if err != nil {
		return fmt.Errorf("failed to create handlers: %w", err)
	}

	router := mux.NewRouter()
	for path, handler := range handlers {
		router.Handle(apiPathPrefix+path, handler)
	}

	server := &http.Server{
		Addr:    config.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("API server listening",
			"addr", config.HTTPAddr,
			"path", apiPathPrefix,
		)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return server.Shutdown(context.Background())
}
