package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/bootstrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	actor   string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Administer tenantgate organizations, licenses and invitations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.readConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ./tenantgate.{yaml,toml,json})")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
	pf.StringVar(&c.actor, "actor", "tenantctl", "actor id recorded in the audit log")
	pf.String("mongo-uri", "", "MongoDB connection URI (env TENANTGATE_MONGO_URI)")
	pf.String("mongo-database", "", "MongoDB database name (env TENANTGATE_MONGO_DATABASE)")
	pf.String("apex-domain", "", "production apex domain (env TENANTGATE_APEX_DOMAIN)")
	_ = c.v.BindPFlag("mongo_uri", pf.Lookup("mongo-uri"))
	_ = c.v.BindPFlag("mongo_database", pf.Lookup("mongo-database"))
	_ = c.v.BindPFlag("apex_domain", pf.Lookup("apex-domain"))

	root.AddCommand(
		newResolveCmd(c),
		newOrgCmd(c),
		newLicenseCmd(c),
		newAccessCmd(c),
		newInviteCmd(c),
		newRegrantCmd(c),
		newPurgeCmd(c),
	)
	return root
}

// readConfig layers defaults < config file < TENANTGATE_* env < flags.
func (c *cli) readConfig() error {
	for _, k := range bootstrap.AppConfigKeys() {
		c.v.SetDefault(k.Name, k.Default)
	}
	c.v.SetEnvPrefix(bootstrap.EnvPrefix)
	c.v.AutomaticEnv()

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.SetConfigName("tenantgate")
		c.v.AddConfigPath(".")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (c *cli) logger() *zap.Logger {
	level := zapcore.WarnLevel
	if c.verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (c *cli) appConfig(logger *zap.Logger) (bootstrap.AppConfig, error) {
	return bootstrap.FromValues(viperValues{c.v}, logger)
}

// session is an open database connection with the domain services.
type session struct {
	cfg    bootstrap.AppConfig
	client *mongo.Client
	core   *bootstrap.Core
	log    *zap.Logger
}

func (c *cli) open(ctx context.Context) (*session, error) {
	logger := c.logger()
	cfg, err := c.appConfig(logger)
	if err != nil {
		return nil, err
	}
	bootstrap.ConfigureTimeouts(cfg)

	client, err := bootstrap.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	core, err := bootstrap.NewCore(cfg, client.Database(cfg.MongoDatabase), logger)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &session{cfg: cfg, client: client, core: core, log: logger}, nil
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
	_ = s.log.Sync()
}

// viperValues adapts viper to bootstrap.Values.
type viperValues struct{ v *viper.Viper }

func (vv viperValues) String(name string) string { return vv.v.GetString(name) }
func (vv viperValues) Int(name string) int       { return vv.v.GetInt(name) }

func (vv viperValues) Duration(name string, def time.Duration) time.Duration {
	if !vv.v.IsSet(name) {
		return def
	}
	if d := vv.v.GetDuration(name); d > 0 {
		return d
	}
	return def
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
