// Package functions provides the HTTP entry points of the pipeline for Cloud Functions.
//
// Each entry point answers a plain text message with status 200 when the run
// succeeded or had nothing to do, 206 when it partially failed and 500 when it failed.
// The optional date query parameter selects the processing date, yesterday by default.
package functions

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
	"github.com/MehdiBC3/Projet-ETL-Pipelines/internal/app"
)

var (
	once        sync.Once
	application *app.App
	logger      zerolog.Logger
	initErr     error
)

func setup() {
	cfg, err := geodair.LoadConfig("")
	if err != nil {
		initErr = err
		return
	}

	logger, err = geodair.NewLogger(cfg.LogLevel, cfg.PrettyLogging)
	if err != nil {
		initErr = err
		return
	}

	application = app.New(cfg, prometheus.DefaultRegisterer)
}

func serve(stage geodair.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(setup)

		if initErr != nil {
			http.Error(w, fmt.Sprintf("fatal: %v", initErr), http.StatusInternalServerError)
			return
		}

		r = r.WithContext(logger.WithContext(r.Context()))
		application.Handler(stage)(w, r)
	}
}

// RunDailyExtraction extracts the raw exports of every pollutant.
func RunDailyExtraction(w http.ResponseWriter, r *http.Request) {
	serve(geodair.StageExtract)(w, r)
}

// RunDailyTransform transforms the raw exports into star schema tables.
func RunDailyTransform(w http.ResponseWriter, r *http.Request) {
	serve(geodair.StageTransform)(w, r)
}

// RunDailyLoad loads the star schema tables into BigQuery.
func RunDailyLoad(w http.ResponseWriter, r *http.Request) {
	serve(geodair.StageLoad)(w, r)
}
