package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"fleetscope/internal/codec"
	"fleetscope/internal/config"
	"fleetscope/internal/handler"
	"fleetscope/internal/hub"
	"fleetscope/internal/notify"
	"fleetscope/internal/service"
	"fleetscope/internal/watcher"
)

// commandTopology returns the topology command configuration
func commandTopology() *cli.Command {
	return &cli.Command{
		Name:    "topology",
		Aliases: []string{"t"},
		Usage:   "Discover every configured organization and print its topology",
		Action: func(c *cli.Context) error {
			exporter, err := codec.ForFormat("text", codec.Options{Color: colorEnabled(c)})
			if err != nil {
				return err
			}
			return discoverAll(c, func(report *service.Report, _ bool) error {
				return exporter.Export(report, os.Stdout)
			})
		},
	}
}

// commandExport returns the export command configuration
func commandExport() *cli.Command {
	return &cli.Command{
		Name:    "export",
		Aliases: []string{"e"},
		Usage:   "Discover and write the report in a machine-readable format",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "json",
				Usage:   "Output format (" + strings.Join(codec.Formats(), ", ") + ")",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Write to `FILE` instead of stdout; one file per organization when several run",
			},
		},
		Action: func(c *cli.Context) error {
			exporter, err := codec.ForFormat(c.String("format"), codec.Options{})
			if err != nil {
				return err
			}
			output := c.String("output")

			return discoverAll(c, func(report *service.Report, multi bool) error {
				if output == "" {
					return exporter.Export(report, os.Stdout)
				}
				path := output
				if multi {
					path = perOrgPath(output, report.Organization)
				}
				if err := writeFile(path, func(w io.Writer) error { return exporter.Export(report, w) }); err != nil {
					return err
				}
				printStatus("Wrote %s report for organization %s to %s", exporter.Format(), report.Organization, path)
				return nil
			})
		},
	}
}

// commandShow returns the show command configuration
func commandShow() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Render a previously exported report",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("show requires a report file")
			}

			importer, err := codec.ImporterFor(strings.TrimPrefix(filepath.Ext(path), "."))
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open report: %w", err)
			}
			defer f.Close()

			report, err := importer.Parse(f)
			if err != nil {
				return err
			}

			exporter, err := codec.ForFormat(c.String("format"), codec.Options{Color: colorEnabled(c)})
			if err != nil {
				return err
			}
			return exporter.Export(report, os.Stdout)
		},
	}
}

// commandServe returns the serve command configuration
func commandServe() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve reports and discovery progress over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "HTTP listen address",
			},
			&cli.BoolFlag{
				Name:  "discover",
				Value: true,
				Usage: "Discover every organization on startup",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Minute,
				Usage: "Upper bound for a single discovery pass",
			},
			&cli.DurationFlag{
				Name:  "refresh",
				Usage: "Rediscover every organization on this interval (0 disables)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Rediscover when the config, credentials or fixture file changes",
			},
		},
		Action: func(c *cli.Context) error {
			events := service.NewEventBus()
			build := func() (*session, error) {
				loaded, path, err := loadConfig(c)
				if err != nil {
					return nil, err
				}
				return newSession(loaded, path, sessionOptions{
					Fixture: c.String("fixture"),
					Orgs:    c.StringSlice("org"),
					Events:  events,
				}, log)
			}
			sess, err := newReloader(build)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			sseHub := hub.New(log)
			go sseHub.Run(ctx)
			go sseHub.Forward(ctx, events)

			if cfg.Notify.AMQPURL != "" {
				publisher, err := notify.Dial(cfg.Notify.AMQPURL, cfg.Notify.Exchange, log)
				if err != nil {
					return err
				}
				defer publisher.Close()
				go publisher.Forward(ctx, events)
				log.Info("Publishing discovery events to the broker")
			}

			timeout := c.Duration("timeout")
			srv := handler.New(sess, handler.Options{
				Organizations:    sess.Organizations(),
				Events:           sseHub,
				DiscoveryTimeout: timeout,
			}, log)

			rediscover := func(ctx context.Context) {
				for _, org := range sess.Organizations() {
					runCtx, cancel := context.WithTimeout(ctx, timeout)
					report, err := srv.Discover(runCtx, org)
					cancel()
					switch {
					case errors.Is(err, handler.ErrDiscoveryRunning):
						log.WithField("org_id", org).Debug("Discovery already running, skipping")
					case err != nil:
						log.WithError(err).WithField("org_id", org).Error("Discovery failed")
					default:
						log.WithField("org_id", org).Infof("Discovery complete: %d devices, %d links",
							report.Stats.Devices, report.Graph.EdgeCount())
					}
				}
			}

			if c.Bool("discover") {
				go rediscover(ctx)
			}
			go watcher.Poll(ctx, c.Duration("refresh"), func(ctx context.Context) {
				sess.Invalidate()
				rediscover(ctx)
			}, log)
			if c.Bool("watch") {
				paths := []string{configPath, c.String("fixture"), cfg.CredentialsFile}
				if cfg.Dashboard.APIKey == "" && cfg.CredentialsFile == "" {
					paths = append(paths, config.FindCredentialsFile(configPath))
				}
				w := watcher.New(paths, func(string) {
					sess.Invalidate()
					rediscover(ctx)
				}, log)
				go func() {
					if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.WithError(err).Error("File watcher stopped")
					}
				}()
			}

			addr := c.String("addr")
			if addr == "" {
				addr = cfg.Server.Addr
			}
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("HTTP server listening on %s", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			log.Info("Server stopped")
			return nil
		},
	}
}

// commandConfig returns the config command configuration
func commandConfig() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or create the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					if configPath != "" {
						fmt.Printf("Config: %s\n", configPath)
					} else {
						fmt.Println("Config: (defaults)")
					}
					fmt.Println(cfg.Summary())
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "Write a default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Destination `FILE`",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: func(c *cli.Context) error {
					path := c.String("path")
					if path == "" {
						path = config.DefaultConfigPath()
					}
					if _, err := os.Stat(path); err == nil && !c.Bool("force") {
						return fmt.Errorf("%s already exists (use --force to overwrite)", path)
					}
					if err := config.DefaultConfig().Save(path); err != nil {
						return err
					}
					printStatus("Wrote %s", path)
					return nil
				},
			},
		},
	}
}

// discoverAll runs every organization of the session in order and hands each report to emit,
// along with whether more than one organization is being discovered.
// A failed organization does not stop the others.
func discoverAll(c *cli.Context, emit func(report *service.Report, multi bool) error) error {
	sess, err := openSession(c)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var failed []string
	for _, org := range sess.Organizations() {
		report, err := sess.Run(ctx, org)
		if err != nil {
			color.Red("Organization %s: %v", org, err)
			failed = append(failed, org)
			continue
		}
		if err := emit(report, len(sess.Organizations()) > 1); err != nil {
			return err
		}
		if report.Partial() {
			color.Yellow("Organization %s: %d fetches failed, topology may be incomplete", org, len(report.Failures))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("discovery failed for %d of %d organizations: %s",
			len(failed), len(sess.Organizations()), strings.Join(failed, ", "))
	}
	return nil
}

// perOrgPath turns report.json into report-<org>.json
func perOrgPath(path, org string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + org + ext
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
