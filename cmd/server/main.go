/*
main.go - Application entry point

PURPOSE:
  Starts the stock ledger server. Configuration comes from the
  environment (.env honored); -port and -db flags override for local
  runs.

STARTUP SEQUENCE:
  1. Load config and logger
  2. Open the SQLite store
  3. Build the ledger engine and HTTP handler
  4. Serve with graceful shutdown on SIGINT/SIGTERM

EXAMPLES:
  ./server -db=./data/gasledger.db
  ./server -db=:memory: -port=3000
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pangkalan/gasledger/api"
	"github.com/pangkalan/gasledger/config"
	"github.com/pangkalan/gasledger/ledger"
	"github.com/pangkalan/gasledger/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	engine := ledger.NewEngine(store, ledger.Config{
		Rules:             ledger.Rules{MinYear: cfg.MinYear, MaxYear: cfg.MaxYear},
		DefaultFilledNote: cfg.FilledNote,
		DefaultEmptyNote:  cfg.EmptyNote,
	}, log)

	// Dashboard-style observer: every committed balance change is logged.
	engine.Subscribe(func(b ledger.Balance) {
		log.WithFields(logrus.Fields{"isi": b.Filled, "kosong": b.Empty}).Info("balance changed")
	})

	handler := api.NewHandler(engine, store, cfg, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
