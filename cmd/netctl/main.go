package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ledgerkit/nodenet/client"
	"github.com/ledgerkit/nodenet/pkg/app_config"
	"github.com/ledgerkit/nodenet/pkg/webapi"
	"github.com/ledgerkit/nodenet/utils/latestonlychannel"
)

func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}

var rootCmd = &cobra.Command{
	Version: getBuildVersion(),

	Use:   "netctl",
	Short: "Inspects and monitors the consensus nodes of a ledger network",
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Prints the node table of the configured network",
	Run: func(cmd *cobra.Command, args []string) {
		runWithManager(func(ctx context.Context, logger *zap.Logger, m *client.NetworkManager) error {
			if refreshOnce {
				err := m.Refresh(ctx)
				if err != nil {
					return err
				}
			}

			printNodeTable(m)
			return nil
		})
	},
}

var healthyCmd = &cobra.Command{
	Use:   "healthy",
	Short: "Prints a sample of healthy nodes, as used to pick request targets",
	Run: func(cmd *cobra.Command, args []string) {
		runWithManager(func(ctx context.Context, logger *zap.Logger, m *client.NetworkManager) error {
			for _, nodeID := range m.HealthyNodeIDs() {
				fmt.Println(nodeID)
			}
			return nil
		})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping [node-id...]",
	Short: "Connects to the given nodes, or every node, and reports their health",
	Run: func(cmd *cobra.Command, args []string) {
		runWithManager(func(ctx context.Context, logger *zap.Logger, m *client.NetworkManager) error {
			if len(args) == 0 {
				err := m.PingAll(ctx)
				printNodeTable(m)
				return err
			}

			var failed bool
			for _, arg := range args {
				nodeID, err := client.ParseNodeID(arg)
				if err != nil {
					return err
				}

				err = m.Ping(ctx, nodeID)
				if err != nil {
					failed = true
					fmt.Printf("%s\tFAILED\t%s\n", nodeID, err)
					continue
				}

				fmt.Printf("%s\tOK\n", nodeID)
			}

			if failed {
				return fmt.Errorf("some nodes failed to respond")
			}
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keeps the node table refreshed and serves it with metrics over http",
	Run: func(cmd *cobra.Command, args []string) {
		startWatch()
	},
}

var cfgFile string
var watchCfgFile bool
var nodesFile string
var refreshOnce bool

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "specifies a config file to load")
	nodesCmd.Flags().BoolVar(&refreshOnce, "refresh", false, "refresh the node table from the mirror network first")
	watchCmd.Flags().BoolVar(&watchCfgFile, "watch-config", false, "indicates whether to watch the config file for changes")
	watchCmd.Flags().StringVar(&nodesFile, "nodes-file", "", "a json file with a `nodes` map to watch and apply")

	configFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	configFlags.String("log-level", "info", "the log level to run at")
	configFlags.String("network", "mainnet", "the preset network to use: mainnet, testnet or previewnet")
	configFlags.StringToString("nodes", nil, "explicit node map of address=node-id pairs, overrides the network")
	configFlags.StringSlice("mirror-addresses", nil, "mirror node addresses used to refresh the node table")
	configFlags.Bool("mirror-plaintext", false, "connect to the mirror nodes without tls")
	configFlags.Duration("refresh-interval", client.DefaultRefreshInterval, "how often to refresh the node table, a negative interval disables refreshing")
	configFlags.Duration("timeout", 30*time.Second, "timeout for one-shot commands")
	configFlags.String("web-address", "0.0.0.0:9091", "the address to serve metrics and the node table on")
	configFlags.String("otlp-endpoint", "", "opentelemetry endpoint to send telemetry to")
	configFlags.Bool("disable-otlp-traces", false, "disable sending traces to otlp")
	configFlags.Bool("disable-otlp-metrics", false, "disable sending metrics to otlp")
	configFlags.Bool("debug", false, "enable debug mode")
	rootCmd.PersistentFlags().AddFlagSet(configFlags)

	rootCmd.AddCommand(nodesCmd, healthyCmd, pingCmd, watchCmd)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("netctl")
	viper.AutomaticEnv()

	_ = viper.BindPFlags(configFlags)
}

func getLogger() (zap.AtomicLevel, *zap.Logger) {
	logLevel := zap.NewAtomicLevel()
	logConfig := zap.NewProductionEncoderConfig()
	logConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(logConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stderr), logLevel),
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logLevel, logger
}

type config struct {
	logLevelStr        string
	network            *app_config.NetworkConfig
	mirrorPlaintext    bool
	timeout            time.Duration
	webAddress         string
	otlpEndpoint       string
	disableOtlpTraces  bool
	disableOtlpMetrics bool
	debug              bool
}

func readConfig(logger *zap.Logger) *config {
	config := &config{
		logLevelStr:        viper.GetString("log-level"),
		network:            app_config.ReadNetworkConfig(viper.GetViper()),
		mirrorPlaintext:    viper.GetBool("mirror-plaintext"),
		timeout:            viper.GetDuration("timeout"),
		webAddress:         viper.GetString("web-address"),
		otlpEndpoint:       viper.GetString("otlp-endpoint"),
		disableOtlpTraces:  viper.GetBool("disable-otlp-traces"),
		disableOtlpMetrics: viper.GetBool("disable-otlp-metrics"),
		debug:              viper.GetBool("debug"),
	}

	logger.Debug("parsed netctl configuration",
		append(config.network.LogFields(),
			zap.String("logLevelStr", config.logLevelStr),
			zap.Bool("mirrorPlaintext", config.mirrorPlaintext),
			zap.Duration("timeout", config.timeout),
			zap.String("webAddress", config.webAddress),
			zap.String("otlpEndpoint", config.otlpEndpoint),
			zap.Bool("disableOtlpTraces", config.disableOtlpTraces),
			zap.Bool("disableOtlpMetrics", config.disableOtlpMetrics),
			zap.Bool("debug", config.debug))...)

	return config
}

func setLogLevel(logger *zap.Logger, logLevel zap.AtomicLevel, levelStr string) {
	parsedLogLevel, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		logger.Warn("invalid log level specified, using INFO instead")
		parsedLogLevel = zapcore.InfoLevel
	}
	logLevel.SetLevel(parsedLogLevel)
}

func loadConfig(logger *zap.Logger, logLevel zap.AtomicLevel) *config {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		err := viper.ReadInConfig()
		if err != nil {
			logger.Panic("failed to load specified config file", zap.Error(err))
		}
	}

	config := readConfig(logger)
	setLogLevel(logger, logLevel, config.logLevelStr)

	return config
}

func (c *config) networkOptions(logger *zap.Logger, disableRefresh bool) client.NetworkOptions {
	return client.NetworkOptions{
		Logger:          logger,
		DisableRefresh:  disableRefresh,
		MirrorPlaintext: c.mirrorPlaintext,
		Debug:           c.debug,
	}
}

// runWithManager runs a one-shot command against a manager which does not
// refresh in the background.
func runWithManager(fn func(ctx context.Context, logger *zap.Logger, m *client.NetworkManager) error) {
	logLevel, logger := getLogger()
	config := loadConfig(logger, logLevel)

	m, err := config.network.NewNetworkManager(config.networkOptions(logger, true))
	if err != nil {
		logger.Error("failed to initialize the network", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.timeout)
	err = fn(ctx, logger, m)
	cancel()

	closeErr := m.Close()
	if closeErr != nil {
		logger.Debug("failed to cleanly close the network", zap.Error(closeErr))
	}

	if err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func printNodeTable(m *client.NetworkManager) {
	now := time.Now()
	topology := m.Topology()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tHEALTHY\tADDRESSES")
	for _, nodeID := range topology.NodeIDs() {
		health, _ := topology.Health(nodeID)
		conn, _ := topology.Connection(nodeID)

		var addresses []string
		for _, address := range conn.Addresses() {
			addresses = append(addresses, address.String())
		}

		fmt.Fprintf(w, "%s\t%t\t%s\n", nodeID, health.IsHealthy(now), strings.Join(addresses, ","))
	}
	_ = w.Flush()
}

func initTelemetry(
	ctx context.Context,
	logger *zap.Logger,
	otlpEndpoint string,
	enableTraces bool,
	enableMetrics bool,
) (
	*sdktrace.TracerProvider,
	*sdkmetric.MeterProvider,
	error,
) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			// the service name used to display traces in backends
			semconv.ServiceNameKey.String("netctl"),
		),
	)
	if err != nil {
		if res == nil {
			return nil, nil, err
		}

		logger.Warn("failed to setup some part of opentelemetry resource", zap.Error(err))
	}

	promExp, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	var meterProvider *sdkmetric.MeterProvider
	if !enableMetrics || otlpEndpoint == "" {
		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(promExp),
		)
	} else {
		metricExp, err := otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithEndpoint(otlpEndpoint))
		if err != nil {
			return nil, nil, err
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(promExp),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		)
	}

	var tracerProvider *sdktrace.TracerProvider
	if enableTraces && otlpEndpoint != "" {
		traceClient := otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(otlpEndpoint))
		traceExp, err := otlptrace.New(ctx, traceClient)
		if err != nil {
			return nil, nil, err
		}

		tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.NeverSample())),
			sdktrace.WithResource(res),
			sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExp)),
		)
	}

	return tracerProvider, meterProvider, nil
}

func startWatch() {
	logLevel, logger := getLogger()

	logger.Info("starting netctl watch", zap.String("version", getBuildVersion()))

	logger.Info("parsed launch configuration",
		zap.String("config", cfgFile),
		zap.Bool("watch-config", watchCfgFile),
		zap.String("nodes-file", nodesFile))

	config := loadConfig(logger, logLevel)

	otlpTracerProvider, otlpMeterProvider, err :=
		initTelemetry(context.Background(),
			logger,
			config.otlpEndpoint,
			!config.disableOtlpTraces,
			!config.disableOtlpMetrics)
	if err != nil {
		logger.Error("failed to initialize opentelemetry", zap.Error(err))
		os.Exit(1)
	}

	if otlpTracerProvider != nil {
		otel.SetTracerProvider(otlpTracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}
	if otlpMeterProvider != nil {
		otel.SetMeterProvider(otlpMeterProvider)
	}

	m, err := config.network.NewNetworkManager(config.networkOptions(logger, false))
	if err != nil {
		logger.Error("failed to initialize the network", zap.Error(err))
		os.Exit(1)
	}

	webapi.InitializeWebServer(webapi.WebServerOptions{
		Logger:        logger.Named("webapi"),
		LogLevel:      &logLevel,
		ListenAddress: config.webAddress,
		Nodes:         m,
	})

	var configLock sync.Mutex
	reloadConfiguration := func() {
		configLock.Lock()
		defer configLock.Unlock()

		err := viper.ReadInConfig()
		if err != nil {
			logger.Warn("failed to parse configuration file",
				zap.Error(err))
		}

		newConfig := readConfig(logger)

		if newConfig.logLevelStr != config.logLevelStr {
			setLogLevel(logger, logLevel, newConfig.logLevelStr)
			logger.Info("updated log level",
				zap.String("newLevel", logLevel.Level().String()))
		}

		if newConfig.otlpEndpoint != config.otlpEndpoint ||
			newConfig.debug != config.debug ||
			newConfig.mirrorPlaintext != config.mirrorPlaintext ||
			newConfig.webAddress != config.webAddress {
			logger.Warn("config changes for otlpEndpoint, debug, mirrorPlaintext or webAddress require a restart")
		}

		err = newConfig.network.Apply(m, config.network, logger)
		if err != nil {
			logger.Warn("failed to reconfigure network", zap.Error(err))
		}

		config = newConfig
	}

	if watchCfgFile && cfgFile != "" {
		viper.OnConfigChange(func(in fsnotify.Event) {
			logger.Info("configuration file change detected")
			reloadConfiguration()
		})
		go viper.WatchConfig()
	}

	if nodesFile != "" {
		watcher, err := app_config.NewConfigWatcher[app_config.NetworkConfig](nodesFile, logger.Named("nodes-file"))
		if err != nil {
			logger.Error("failed to watch nodes file", zap.Error(err))
			os.Exit(1)
		}
		defer watcher.Close()

		nodesCh := make(chan app_config.NetworkConfig)
		defer watcher.Subscribe(nodesCh)()

		go func() {
			for nodesConfig := range latestonlychannel.Wrap[app_config.NetworkConfig](nodesCh) {
				addresses, err := nodesConfig.NodeAddresses()
				if err == nil {
					err = m.SetAddresses(addresses)
				}
				if err != nil {
					logger.Warn("failed to apply nodes file", zap.Error(err))
					continue
				}

				logger.Info("applied nodes file", zap.Int("numNodes", len(addresses)))
			}
		}()
	}

	sigCh := make(chan os.Signal, 10)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logger.Info("received SIGHUP, reloading configuration...")
			reloadConfiguration()
			continue
		}

		logger.Info("received signal, shutting down...", zap.String("signal", sig.String()))
		break
	}

	err = m.Close()
	if err != nil {
		logger.Warn("failed to cleanly close the network", zap.Error(err))
	}

	if otlpTracerProvider != nil {
		_ = otlpTracerProvider.Shutdown(context.Background())
	}
	if otlpMeterProvider != nil {
		_ = otlpMeterProvider.Shutdown(context.Background())
	}

	logger.Info("netctl watch shutdown gracefully")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
