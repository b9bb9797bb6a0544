package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/telemetry"
)

var (
	tracer = telemetry.Tracer("skillrun.cli")

	shutdownTracing func(context.Context) error
	commandSpan     trace.Span
)

// startTracing initializes the OpenTelemetry tracer from the tracing
// settings and opens a span covering the command.
func startTracing(cmd *cobra.Command, args []string) error {
	settings := config.TracingSettings{
		Enabled: viper.GetBool("tracing.enabled"),
		Sampler: viper.GetString("tracing.sampler"),
		Ratio:   viper.GetFloat64("tracing.ratio"),
	}

	shutdown, err := telemetry.InitTracer(cmd.Context(), telemetry.ConfigFromSettings(settings))
	if err != nil {
		return err
	}
	shutdownTracing = shutdown

	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.Name()),
		attribute.String("command.path", cmd.CommandPath()),
		attribute.Int("args.count", len(args)),
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
	})

	ctx, span := tracer.Start(cmd.Context(), "cli.command", trace.WithAttributes(attrs...))
	commandSpan = span
	cmd.SetContext(ctx)
	return nil
}

// stopTracing ends the command span and flushes pending spans.
func stopTracing(ctx context.Context, cmdErr error) {
	if commandSpan != nil {
		if cmdErr != nil {
			telemetry.RecordError(trace.ContextWithSpan(ctx, commandSpan), cmdErr)
		}
		commandSpan.End()
	}
	if shutdownTracing == nil {
		return
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to shut down tracing")
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
