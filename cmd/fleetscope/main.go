package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"fleetscope/internal/config"
)

const appVersion = "0.3.0"

var (
	log        = logrus.New()
	cfg        *config.Config
	configPath string
)

func main() {
	app := &cli.App{
		Name:    "fleetscope",
		Usage:   "Discover and draw the switch topology of cloud-managed networks",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{config.EnvConfigPath},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringSliceFlag{
				Name:    "org",
				Aliases: []string{"o"},
				Usage:   "Organization `ID` to discover (repeatable)",
			},
			&cli.StringFlag{
				Name:  "fixture",
				Usage: "Read organization data from a YAML snapshot `FILE` instead of the API",
			},
			&cli.StringFlag{
				Name:  "pace",
				Usage: "Request pace (cautious, balanced, aggressive)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, configPath, err = loadConfig(c)
			if err != nil {
				return err
			}
			if c.Bool("no-color") {
				color.NoColor = true
			}

			levelName := cfg.Log.Level
			if c.IsSet("log-level") {
				levelName = c.String("log-level")
			}
			level, err := logrus.ParseLevel(levelName)
			if err != nil {
				level = logrus.InfoLevel
			}
			log.SetLevel(level)
			log.SetOutput(os.Stderr)

			if cfg.Log.Format == "json" {
				log.SetFormatter(&logrus.JSONFormatter{})
			} else {
				log.SetFormatter(&logrus.TextFormatter{
					FullTimestamp:   true,
					TimestampFormat: "2006-01-02 15:04:05",
				})
			}

			if configPath != "" {
				log.WithField("path", configPath).Debug("Loaded config")
			}
			return nil
		},
		Commands: []*cli.Command{
			commandTopology(),
			commandExport(),
			commandShow(),
			commandServe(),
			commandConfig(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file, or searches the default locations, and applies
// the flags that override it
func loadConfig(c *cli.Context) (*config.Config, string, error) {
	var (
		loaded *config.Config
		path   string
		err    error
	)
	if p := c.String("config"); p != "" {
		loaded, path, err = config.LoadFromPath(p)
	} else {
		loaded, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}
	if p := c.String("pace"); p != "" {
		loaded.Pace = config.ParsePace(p)
	}
	return loaded, path, nil
}

// openSession builds a session from the global flags
func openSession(c *cli.Context) (*session, error) {
	return newSession(cfg, configPath, sessionOptions{
		Fixture: c.String("fixture"),
		Orgs:    c.StringSlice("org"),
	}, log)
}

// colorEnabled reports whether text output should be colored
func colorEnabled(c *cli.Context) bool {
	return !c.Bool("no-color") && !color.NoColor
}

func printStatus(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.GreenString(format, args...))
}
