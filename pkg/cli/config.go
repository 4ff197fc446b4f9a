package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/drivelens/pkg/adapter"
	"github.com/m-mizutani/drivelens/pkg/usecase/channel"
	"github.com/m-mizutani/drivelens/pkg/usecase/publish"
	"github.com/m-mizutani/drivelens/pkg/usecase/session"
	"github.com/m-mizutani/drivelens/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultAgent      = "research_agent"
	defaultModel      = "openai"
	defaultRuntimeURL = "http://localhost:3000/api/copilotkit"

	testnetLensEndpoint = "https://api.testnet.lens.xyz/graphql"
	testnetChainID      = 37111

	storageGrove = "grove"
	storageGCS   = "gcs"
)

// config holds configuration values
type config struct {
	// Profile and logging
	configFile string
	logLevel   string
	logFormat  string
	logOutput  string

	// Agent
	agent         string
	model         string
	runtimeURL    string
	deploymentURL string

	// Lens
	lensEndpoint string
	lensOrigin   string
	sessionFile  string
	testnet      bool

	// Storage
	storage       string
	groveEndpoint string
	bucket        string
	prefix        string

	// Wallet
	walletKey string
}

// profile is the optional YAML file given by --config. Its values are used
// for options not set by flag or environment variable.
type profile struct {
	Agent         string `yaml:"agent"`
	Model         string `yaml:"model"`
	RuntimeURL    string `yaml:"runtime_url"`
	DeploymentURL string `yaml:"deployment_url"`
	Storage       string `yaml:"storage"`
	Bucket        string `yaml:"bucket"`
	LogLevel      string `yaml:"log_level"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML profile",
			Sources:     cli.EnvVars("DRIVELENS_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("DRIVELENS_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("DRIVELENS_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log destination (stderr, stdout or file path)",
			Value:       "stderr",
			Sources:     cli.EnvVars("DRIVELENS_LOG_OUTPUT"),
			Destination: &cfg.logOutput,
		},
	}
}

// agentFlags returns flags selecting the remote agent
func agentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "agent",
			Aliases:     []string{"a"},
			Usage:       "Agent name",
			Value:       defaultAgent,
			Sources:     cli.EnvVars("DRIVELENS_AGENT"),
			Destination: &cfg.agent,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "Model used by the agent",
			Value:       defaultModel,
			Sources:     cli.EnvVars("DRIVELENS_MODEL"),
			Destination: &cfg.model,
		},
		&cli.StringFlag{
			Name:        "runtime-url",
			Usage:       "Agent runtime URL",
			Value:       defaultRuntimeURL,
			Sources:     cli.EnvVars("DRIVELENS_RUNTIME_URL"),
			Destination: &cfg.runtimeURL,
		},
		&cli.StringFlag{
			Name:        "deployment-url",
			Usage:       "Route the agent to this deployment",
			Sources:     cli.EnvVars("DRIVELENS_DEPLOYMENT_URL", "LGC_DEPLOYMENT_URL"),
			Destination: &cfg.deploymentURL,
		},
	}
}

// lensFlags returns flags for the Lens API and the saved session
func lensFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "lens-endpoint",
			Usage:       "Lens GraphQL endpoint",
			Value:       adapter.DefaultLensEndpoint,
			Sources:     cli.EnvVars("DRIVELENS_LENS_ENDPOINT"),
			Destination: &cfg.lensEndpoint,
		},
		&cli.StringFlag{
			Name:        "lens-origin",
			Usage:       "Origin header sent to the Lens API",
			Value:       adapter.DefaultLensOrigin,
			Sources:     cli.EnvVars("DRIVELENS_LENS_ORIGIN"),
			Destination: &cfg.lensOrigin,
		},
		&cli.StringFlag{
			Name:        "session-file",
			Usage:       "Path of the saved Lens session",
			Sources:     cli.EnvVars("DRIVELENS_SESSION_FILE"),
			Destination: &cfg.sessionFile,
		},
		&cli.BoolFlag{
			Name:        "testnet",
			Usage:       "Use the Lens testnet",
			Sources:     cli.EnvVars("DRIVELENS_TESTNET"),
			Destination: &cfg.testnet,
		},
	}
}

// storageFlags returns flags for the post content store
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage",
			Usage:       "Content store (grove, gcs)",
			Value:       storageGrove,
			Sources:     cli.EnvVars("DRIVELENS_STORAGE"),
			Destination: &cfg.storage,
		},
		&cli.StringFlag{
			Name:        "grove-endpoint",
			Usage:       "Grove storage API endpoint",
			Value:       adapter.DefaultGroveEndpoint,
			Sources:     cli.EnvVars("DRIVELENS_GROVE_ENDPOINT"),
			Destination: &cfg.groveEndpoint,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for --storage=gcs",
			Sources:     cli.EnvVars("DRIVELENS_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object prefix for --storage=gcs",
			Value:       "posts/",
			Sources:     cli.EnvVars("DRIVELENS_PREFIX"),
			Destination: &cfg.prefix,
		},
	}
}

// walletFlags returns flags for the signing wallet
func walletFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "wallet-key",
			Usage:       "Hex encoded secp256k1 private key of the wallet",
			Sources:     cli.EnvVars("DRIVELENS_WALLET_KEY"),
			Destination: &cfg.walletKey,
		},
	}
}

// loadProfile reads a YAML profile
func loadProfile(path string) (*profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return &p, nil
}

// applyProfile copies profile values into options the user did not set
func (cfg *config) applyProfile(p *profile, isSet func(name string) bool) {
	fill := func(name, value string, dst *string) {
		if value != "" && !isSet(name) {
			*dst = value
		}
	}
	fill("agent", p.Agent, &cfg.agent)
	fill("model", p.Model, &cfg.model)
	fill("runtime-url", p.RuntimeURL, &cfg.runtimeURL)
	fill("deployment-url", p.DeploymentURL, &cfg.deploymentURL)
	fill("storage", p.Storage, &cfg.storage)
	fill("bucket", p.Bucket, &cfg.bucket)
	fill("log-level", p.LogLevel, &cfg.logLevel)
}

// setup applies the profile and installs the logger. The returned function
// releases the log output.
func (cfg *config) setup(ctx context.Context, c *cli.Command) (context.Context, func(), error) {
	if cfg.configFile != "" {
		p, err := loadProfile(cfg.configFile)
		if err != nil {
			return nil, nil, err
		}
		cfg.applyProfile(p, c.IsSet)
	}

	if _, err := logging.ParseLevel(cfg.logLevel); err != nil {
		return nil, nil, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return nil, nil, err
	}
	w, closeOutput, err := logging.OpenOutput(cfg.logOutput)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(cfg.logLevel, w, logging.WithFormat(format))
	logging.SetDefault(logger)

	return logging.With(ctx, logger), func() { _ = closeOutput() }, nil
}

func (cfg *config) lensConfig() adapter.LensConfig {
	endpoint := cfg.lensEndpoint
	if cfg.testnet && endpoint == adapter.DefaultLensEndpoint {
		endpoint = testnetLensEndpoint
	}
	return adapter.LensConfig{
		Endpoint: endpoint,
		Origin:   cfg.lensOrigin,
	}
}

// newSessionStore opens the saved Lens session
func (cfg *config) newSessionStore() (adapter.SessionStore, error) {
	path := cfg.sessionFile
	if path == "" {
		p, err := adapter.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return adapter.NewFileSessionStore(path), nil
}

// newResolver creates a session resolver. Each lookup reloads the saved
// session so a login or logout in another process is picked up.
func (cfg *config) newResolver() (*session.Resolver, error) {
	store, err := cfg.newSessionStore()
	if err != nil {
		return nil, err
	}

	lensCfg := cfg.lensConfig()
	return session.New(func(ctx context.Context) (adapter.LensClient, error) {
		creds, err := store.Load()
		if err != nil {
			return nil, err
		}
		c := lensCfg
		c.Credentials = creds
		return adapter.NewLens(c), nil
	}), nil
}

// newSigner creates the wallet signer
func (cfg *config) newSigner() (adapter.Signer, error) {
	if cfg.walletKey == "" {
		return nil, goerr.New("wallet-key is required")
	}
	signer, err := adapter.NewLocalWallet(cfg.walletKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load wallet")
	}
	return signer, nil
}

// newContentStore creates the store for post content
func (cfg *config) newContentStore(ctx context.Context) (adapter.ContentStore, error) {
	switch cfg.storage {
	case storageGrove, "":
		chainID := int64(adapter.LensMainnetChainID)
		if cfg.testnet {
			chainID = testnetChainID
		}
		return adapter.NewGroveStore(
			adapter.WithGroveEndpoint(cfg.groveEndpoint),
			adapter.WithGroveChainID(chainID),
		), nil

	case storageGCS:
		if cfg.bucket == "" {
			return nil, goerr.New("bucket is required for gcs storage")
		}
		store, err := adapter.NewGCSStore(ctx, cfg.bucket, cfg.prefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return store, nil

	default:
		return nil, goerr.New("unknown storage", goerr.V("storage", cfg.storage))
	}
}

// newPipeline wires the publish pipeline
func (cfg *config) newPipeline(ctx context.Context, resolver *session.Resolver, opts ...publish.Option) (*publish.Pipeline, error) {
	store, err := cfg.newContentStore(ctx)
	if err != nil {
		return nil, err
	}
	return publish.New(resolver, store, opts...), nil
}

// agentEndpoint returns the URL to dial for the configured agent
func (cfg *config) agentEndpoint() (string, error) {
	if cfg.model == "" {
		return "", goerr.New("model is required")
	}
	return channel.Endpoint(cfg.runtimeURL, cfg.agent, cfg.deploymentURL)
}
