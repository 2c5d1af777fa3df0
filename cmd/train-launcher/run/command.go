// Package run implements "train-launcher run".
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/splatloc/train-launcher/internal/awssdk"
	"github.com/splatloc/train-launcher/internal/metrics"
	"github.com/splatloc/train-launcher/launchconfig"
	"github.com/splatloc/train-launcher/launcher"
	"github.com/splatloc/train-launcher/pkg/logutil"
	"github.com/splatloc/train-launcher/pkg/s3upload"
	"github.com/splatloc/train-launcher/version"
	"go.uber.org/zap"
)

var configPath string

// NewCommand returns a new "run" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the training script and copy provenance into its output directory",
		Long: `Runs the training script with the scene's source, output, image and feature paths,
then copies the configuration file (or --provenance-path) into <source-path>/outputs/<output-label>.

Configuration values are read from --config, overwritten by TRAIN_LAUNCHER_* environment
variables, then by flags set on the command line.`,
		SilenceUsage: true,
		RunE:         runFunc,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Configuration file path")
	if err := bindFlags(cmd.Flags()); err != nil {
		panic(err)
	}
	return cmd
}

func runFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	lg, wr, logFile, err := logutil.NewWithStderrWriter(cfg.LogLevel, cfg.LogOutputs)
	if err != nil {
		return err
	}
	defer func() {
		_ = lg.Sync()
		if logFile != nil {
			logFile.Close()
		}
	}()
	lg.Info("starting train-launcher",
		zap.String("version", version.ReleaseVersion),
		zap.String("git-commit", version.GitCommit),
		zap.String("config-path", cfg.ConfigPath),
		zap.String("output-path", cfg.ResolvedOutputPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []launcher.Option{launcher.WithOutput(os.Stdout, wr)}
	awsOpts, err := awsOptions(ctx, lg, cfg)
	if err != nil {
		return err
	}
	opts = append(opts, awsOpts...)

	l, err := launcher.New(lg, cfg, opts...)
	if err != nil {
		return err
	}
	rec, err := l.Run(ctx)
	if err != nil {
		lg.Warn("train-launcher run failed", zap.Error(err))
		return err
	}
	fmt.Fprintf(os.Stderr, "\n'train-launcher run' success (took %s, output %q)\n", rec.TimeFrame.TookString, rec.OutputPath)
	return nil
}

// awsOptions wires the S3 uploader and CloudWatch metrics when configured.
func awsOptions(ctx context.Context, lg *zap.Logger, cfg *launchconfig.Config) ([]launcher.Option, error) {
	if cfg.S3Bucket == "" && !cfg.EmitMetrics {
		return nil, nil
	}
	awsCfg, err := awssdk.NewConfig(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration (%w)", err)
	}

	var opts []launcher.Option
	if cfg.S3Bucket != "" {
		prefix := path.Join(cfg.S3Prefix, cfg.SceneName(), cfg.OutputLabel)
		opts = append(opts, launcher.WithUploader(s3upload.New(
			lg,
			s3.NewFromConfig(awsCfg),
			cfg.S3Bucket,
			prefix,
			map[string]string{
				"scene":        cfg.SceneName(),
				"output-label": cfg.OutputLabel,
			},
		)))
	}
	if cfg.EmitMetrics {
		opts = append(opts, launcher.WithMetrics(metrics.NewCloudWatchRegistry(lg, cloudwatch.NewFromConfig(awsCfg))))
	}
	return opts, nil
}
