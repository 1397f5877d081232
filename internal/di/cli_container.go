package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/logging"
)

// CLIFlags contains all command line flags for the status CLI
type CLIFlags struct {
	Email string
	IP    string

	// Store flags, used when no config file is given
	Store      string
	SQLitePath string

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	flag.StringVar(&flags.Email, "email", "", "Email address to check")
	flag.StringVar(&flags.IP, "ip", "", "Client IP address to check")
	flag.StringVar(&flags.Store, "store", "sqlite", "Submission log type (sqlite, mysql, postgres)")
	flag.StringVar(&flags.SQLitePath, "sqlite-path", "/data/contact_guard.db", "Path to the SQLite submission log")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides store flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates a container that only provides what a read-only
// cooldown lookup needs
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("store.type", flags.Store)
	if flags.Store == "sqlite" {
		v.Set("store.sqlite_path", flags.SQLitePath)
	}

	return config.NewFromViper(v)
}
