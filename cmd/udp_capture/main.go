package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/schidstorm/udp_capture/pkg/capture"
	"github.com/schidstorm/udp_capture/pkg/monitor"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cmd := rootCommand()
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Error executing command")
	}
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "udp_capture",
		Short: "Capture UDP datagrams into a raw log and a lock-free ring pipeline",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevelStr, _ := cmd.Flags().GetString("log-level")
			logLevel, err := zerolog.ParseLevel(logLevelStr)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid log level")
			}

			zerolog.SetGlobalLevel(logLevel)
		},
	}

	cmd.PersistentFlags().StringP("log-level", "l", "info", "loglevel")

	cmd.AddCommand(captureCommand())
	cmd.AddCommand(sendCommand())

	return cmd
}

func captureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Receive datagrams into the raw-capture file and the ring",
		Run: func(cmd *cobra.Command, args []string) {
			listenAddr, _ := cmd.Flags().GetString("listen")
			rawLogPath, _ := cmd.Flags().GetString("rawlog")
			ringCapacity, _ := cmd.Flags().GetInt("ring-capacity")
			metricsAddr, _ := cmd.Flags().GetString("metrics")
			monitorAddr, _ := cmd.Flags().GetString("monitor")
			remoteWriteURL, _ := cmd.Flags().GetString("remote-write.url")

			runCapture(capture.Config{
				ListenAddr:   listenAddr,
				RawLogPath:   rawLogPath,
				RingCapacity: ringCapacity,
			}, metricsAddr, monitorAddr, remoteWriteURL)
		},
	}

	cmd.Flags().String("listen", "", "UDP address to listen on")
	cmd.Flags().String("rawlog", "", "path of the append-only raw capture file")
	cmd.Flags().Int("ring-capacity", capture.DefaultRingCapacity, "ring capacity, must be a power of two")
	cmd.Flags().String("metrics", ":8080", "HTTP address to expose metrics on")
	cmd.Flags().String("monitor", "", "HTTP address of the live packet websocket, disabled when empty")
	cmd.Flags().String("remote-write.url", "", "prometheus remote-write endpoint, disabled when empty")
	cmd.MarkFlagRequired("listen")
	cmd.MarkFlagRequired("rawlog")

	return cmd
}

func runCapture(cfg capture.Config, metricsAddr, monitorAddr, remoteWriteURL string) {
	capture.RegisterMetrics()

	var sink capture.BatchSink
	var fanout *monitor.Fanout
	if monitorAddr != "" {
		fanout = monitor.NewFanout()
		sink = fanout
	}

	var reporter capture.Reporter
	if remoteWriteURL != "" {
		reporter = monitor.NewRemoteWriter(remoteWriteURL)
	}

	pipeline, err := capture.NewPipeline(cfg, sink, reporter)
	if err != nil {
		log.Fatal().Err(err).Msg("Error starting capture pipeline")
	}
	defer pipeline.Close()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Info().Str("address", metricsAddr).Msg("Starting metrics server")
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.Fatal().Err(err).Msg("Error starting metrics server")
		}
	}()

	if fanout != nil {
		go func() {
			if err := monitor.NewServer(fanout).Start(monitorAddr); err != nil {
				log.Fatal().Err(err).Msg("Error starting monitor server")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline.Run(ctx)
	log.Info().Msg("Capture pipeline stopped")
}

func sendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send synthetic datagrams to a capture instance",
		Run: func(cmd *cobra.Command, args []string) {
			target, _ := cmd.Flags().GetString("target")
			count, _ := cmd.Flags().GetInt("count")
			size, _ := cmd.Flags().GetInt("size")
			interval, _ := cmd.Flags().GetDuration("interval")

			runSend(target, count, size, interval)
		},
	}

	cmd.Flags().String("target", "", "UDP address of the capture instance")
	cmd.Flags().Int("count", 0, "number of datagrams to send, 0 means forever")
	cmd.Flags().Int("size", 64, "payload size in bytes")
	cmd.Flags().Duration("interval", time.Millisecond, "delay between datagrams")
	cmd.MarkFlagRequired("target")

	return cmd
}

func runSend(target string, count, size int, interval time.Duration) {
	if size > capture.PacketMax {
		log.Fatal().Int("size", size).Int("max", capture.PacketMax).Msg("payload size exceeds the packet maximum")
	}

	conn, err := net.Dial("udp", target)
	if err != nil {
		log.Fatal().Err(err).Msg("Error dialing target")
	}
	defer conn.Close()

	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}

	log.Info().Str("target", target).Int("size", size).Msg("sending datagrams")

	sent := 0
	for count == 0 || sent < count {
		if _, err := conn.Write(payload); err != nil {
			log.Warn().Err(err).Msg("send failed")
		}
		sent++
		time.Sleep(interval)
	}

	log.Info().Int("count", sent).Msg("done sending")
}
