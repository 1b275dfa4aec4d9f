// geodair runs the Geod'air air quality pipeline.
//
// Usage:
//
//	geodair extract --date 2024-01-15
//	geodair transform
//	geodair load --force
//	geodair referential publish
//	geodair serve --addr :8080
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
	"github.com/MehdiBC3/Projet-ETL-Pipelines/internal/app"
)

var version = "dev"

func main() {
	a := &cli.App{
		Name:    "geodair",
		Usage:   "Extract, transform and load Geod'air air quality measurements",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{geodair.EnvConfigFile},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error), overrides the configuration",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human friendly logs",
			},
		},

		Before: setupLogger,

		Commands: []*cli.Command{
			stageCommand(geodair.StageExtract, "Extract the raw exports of every pollutant"),
			stageCommand(geodair.StageTransform, "Transform the raw exports into star schema tables"),
			stageCommand(geodair.StageLoad, "Load the star schema tables into BigQuery"),
			referentialCommand(),
			serveCommand(),
		},
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*geodair.Config, error) {
	cfg, err := geodair.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("pretty") {
		cfg.PrettyLogging = c.Bool("pretty")
	}

	return cfg, nil
}

func setupLogger(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	l, err := geodair.NewLogger(cfg.LogLevel, cfg.PrettyLogging)
	if err != nil {
		return err
	}

	log.Logger = l
	c.Context = l.WithContext(c.Context)

	return nil
}

func stageCommand(stage geodair.Stage, usage string) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "date",
			Aliases: []string{"d"},
			Usage:   "Processing date (YYYY-MM-DD), yesterday by default",
		},
	}

	if stage == geodair.StageLoad {
		flags = append(flags, &cli.BoolFlag{
			Name:  "force",
			Usage: "Load tables already recorded in the load journal",
		})
	}

	return &cli.Command{
		Name:  string(stage),
		Usage: usage,
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			rep := app.New(cfg, prometheus.NewRegistry()).Run(c.Context, stage, c.String("date"), c.Bool("force"))
			fmt.Println(rep.Message)

			switch rep.Status {
			case geodair.StatusOK:
				return nil
			case geodair.StatusPartial:
				return cli.Exit("", 2)
			default:
				return cli.Exit("", 1)
			}
		},
	}
}

func referentialCommand() *cli.Command {
	return &cli.Command{
		Name:  "referential",
		Usage: "Manage the pollutant referential",
		Subcommands: []*cli.Command{
			{
				Name:  "publish",
				Usage: "Publish the built-in pollutant referential to storage",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := cfg.Validate(geodair.StageTransform); err != nil {
						return err
					}

					s, closer, err := app.New(cfg, prometheus.NewRegistry()).Storage(c.Context)
					if err != nil {
						return err
					}
					defer closer.Close()

					return geodair.PublishReferential(c.Context, s, geodair.DefaultReferential)
				},
			},
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the pipeline stages over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Usage:   "Listen address",
				EnvVars: []string{"GEODAIR_ADDR"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	l := log.Ctx(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := app.New(cfg, reg)

	router := mux.NewRouter()
	router.HandleFunc("/extract", a.Handler(geodair.StageExtract)).Methods(http.MethodPost)
	router.HandleFunc("/transform", a.Handler(geodair.StageTransform)).Methods(http.MethodPost)
	router.HandleFunc("/load", a.Handler(geodair.StageLoad)).Methods(http.MethodPost)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	})

	server := &http.Server{
		Addr:        c.String("addr"),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("address", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	l.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	l.Info().Msg("server stopped")

	return nil
}
