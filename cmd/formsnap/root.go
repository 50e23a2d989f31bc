package main

import (
	"context"
	"fmt"
	"io"
	"os"

	kitconfig "github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/forms/v1"
	"google.golang.org/api/option"

	"github.com/Jumpaku/go-formsnap"
	"github.com/Jumpaku/go-formsnap/form"
	"github.com/Jumpaku/go-formsnap/remote"
	"github.com/Jumpaku/go-formsnap/store"
)

// env is shared by the subcommands of one invocation.
type env struct {
	cfg formsnap.Config
	log logger.Logger
	out io.Writer

	formClient *form.Client
}

type envKey struct{}

func envFrom(cmd *cobra.Command) *env {
	return cmd.Context().Value(envKey{}).(*env)
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "formsnap",
		Short:         "Snapshot form structures to JSON and restore forms from snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			cfg, err := loadConfig(v, cmd.Flags(), cfgFile, cwd)
			if err != nil {
				return err
			}
			e := &env{cfg: cfg, log: newLogger(logLevel), out: out}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", formsnap.ErrUsage, err)
	})

	d := formsnap.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Path to a configuration file (JSON or YAML). Defaults to ./formsnap.{yaml,json}.")
	flags.StringVar(&logLevel, "log-level", "WARN", "Log level: DEBUG, INFO, WARN or ERROR.")
	flags.String("source", d.Source, "Schema source: apps-script or forms-api.")
	flags.String("store", d.Store, "Snapshot store: local or drive.")
	flags.String("drive-folder", "", "Drive folder ID that holds snapshots when --store=drive.")
	flags.String("output-dir", "", "Snapshot directory. Defaults to forms next to the executable.")
	flags.String("endpoint", "", "Apps Script web app URL.")
	flags.String("api-key", "", "Apps Script API key. Prefer FORMSNAP_API_KEY or a .env file.")
	flags.Duration("timeout", d.Timeout, "Timeout of one Apps Script request.")
	flags.Int("max-retries", d.MaxRetries, "Retries of a transiently failing restore step.")
	flags.Duration("retry-interval", d.RetryInterval, "Initial wait between restore retries.")
	flags.String("policy", d.Policy, "Restore policy for an existing target: overwrite or append.")

	rootCmd.AddCommand(
		newListCmd(),
		newFetchCmd(),
		newRestoreCmd(),
		newSnapshotsCmd(),
	)
	return rootCmd
}

func newLogger(level string) logger.Logger {
	c := kitconfig.New()
	c.Set("LOG_LEVEL", level)
	return logger.NewFactory(c).NewLogger().Child("formsnap")
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", formsnap.ErrUsage, err)
		}
		return nil
	}
}

func (e *env) newStore(ctx context.Context) (*store.Store, error) {
	var blobs store.Blobs
	switch e.cfg.Store {
	case formsnap.StoreDrive:
		client, err := google.DefaultClient(ctx, drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("failed to load Google credentials: %w", err)
		}
		service, err := drive.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive service: %w", err)
		}
		blobs = store.NewDriveBlobs(service, e.cfg.DriveFolder)
	default:
		blobs = store.NewFileBlobs(afero.NewOsFs())
	}
	return store.New(blobs, e.cfg.OutputDir,
		store.WithDefaultPrefix(e.cfg.Prefix),
		store.WithLogger(e.log.Child("store")),
	), nil
}

func (e *env) newFormClient(ctx context.Context) (*form.Client, error) {
	if e.formClient != nil {
		return e.formClient, nil
	}
	client, err := google.DefaultClient(ctx, forms.FormsBodyScope, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}
	service, err := forms.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Forms service: %w", err)
	}
	e.formClient = form.New(service, form.WithLogger(e.log.Child("form")))
	return e.formClient, nil
}

func (e *env) newSource(ctx context.Context) (formsnap.Source, error) {
	if e.cfg.Source == formsnap.SourceFormsAPI {
		return e.newFormClient(ctx)
	}
	if e.cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: no Apps Script endpoint configured (set FORMSNAP_ENDPOINT or --endpoint)", formsnap.ErrUsage)
	}
	return remote.New(e.cfg.Endpoint, e.cfg.APIKey,
		remote.WithTimeout(e.cfg.Timeout),
		remote.WithLogger(e.log.Child("remote")),
	), nil
}

// newApp builds an App with a store and, on request, a source and a mutator.
func (e *env) newApp(ctx context.Context, withSource, withMutator bool) (*formsnap.App, error) {
	deps := formsnap.Deps{Logger: e.log}
	var err error
	if deps.Store, err = e.newStore(ctx); err != nil {
		return nil, err
	}
	if withSource {
		if deps.Source, err = e.newSource(ctx); err != nil {
			return nil, err
		}
	}
	if withMutator {
		if deps.Mutator, err = e.newFormClient(ctx); err != nil {
			return nil, err
		}
	}
	return formsnap.New(e.cfg, deps), nil
}
