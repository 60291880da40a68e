// Package main is the CLI entry point for dtslog — tooling around the
// tamper-evident device audit chain.
//
// Commands:
//
//	dtslog append   - append an event to a device's local chain archive
//	dtslog verify   - verify an exported JSONL file offline
//	dtslog export   - print a device's archive as JSONL
//	dtslog upload   - upload a device's archive to a collector
//	dtslog serve    - run the collector
//	dtslog demo     - scripted adapter walkthrough
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dts "github.com/bigdataplumbing/dts-go"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// stateDir is the global flag for where device archives live.
var stateDir string

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dtslog"
	}
	return filepath.Join(home, ".dtslog")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dtslog",
	Short: "dtslog — tamper-evident device audit chains",
	Long: `dtslog appends hash-chained audit events for a device, archives them
locally, and verifies exported chains offline. Each entry embeds the
digest of its predecessor, so deletion, reordering, or alteration of
any past entry is detectable.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(),
		"directory holding per-device chain archives")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)

	appendCmd.Flags().StringVar(&appendUser, "user", "system",
		"actor: system, admin, operator, service, unauthorized")
	appendCmd.Flags().StringVar(&appendSeverity, "severity", "info",
		"severity: debug, info, warning, error, critical")

	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false,
		"also recompute each entry digest from its payload")

	uploadCmd.Flags().StringVar(&uploadURL, "collector", "http://localhost:8440",
		"collector base URL")
	uploadCmd.Flags().BoolVar(&uploadProto, "proto", false,
		"upload in protobuf wire format instead of JSONL")

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "",
		"path to collector config file (yaml)")
}

// openDeviceStore opens the archive for one device under the state dir.
func openDeviceStore(deviceID string) (dts.Store, error) {
	return dts.OpenFileStore(filepath.Join(stateDir, deviceID))
}

// resumeDeviceChain reconstructs chain state from the device archive
// tail, so appends continue the chain across CLI invocations.
func resumeDeviceChain(deviceID string, st dts.Store) (*dts.Chain, error) {
	entries, err := dts.ReadAll(st)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if len(entries) == 0 {
		return dts.NewChain(deviceID), nil
	}
	last, err := dts.DecodeEntry(entries[len(entries)-1])
	if err != nil {
		return nil, fmt.Errorf("decode archive tail: %w", err)
	}
	prev, err := dts.ParseDigest(last.ChainHash)
	if err != nil {
		return nil, fmt.Errorf("parse archive tail digest: %w", err)
	}
	return dts.ResumeChain(deviceID, prev, uint64(len(entries))), nil
}

var (
	appendUser     string
	appendSeverity string
)

var appendCmd = &cobra.Command{
	Use:   "append <device-id> <message>",
	Short: "Append an event to a device's chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID, message := args[0], args[1]

		user, err := parseUserID(appendUser)
		if err != nil {
			return err
		}
		severity, err := parseSeverity(appendSeverity)
		if err != nil {
			return err
		}

		st, err := openDeviceStore(deviceID)
		if err != nil {
			return err
		}
		defer st.Close()

		chain, err := resumeDeviceChain(deviceID, st)
		if err != nil {
			return err
		}

		entry := chain.Append(message, user, severity)
		if _, err := dts.ArchiveEntry(st, entry); err != nil {
			return fmt.Errorf("archive entry: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), entry)
		return nil
	},
}

var verifyStrict bool

var verifyCmd = &cobra.Command{
	Use:   "verify <export.jsonl>",
	Short: "Verify an exported chain offline",
	Long: `Verify reads a JSONL export (one serialized entry per line, "-" for
stdin) and replays digest linkage over it. With --strict each entry
digest is also recomputed from its payload fields, which additionally
detects in-place message tampering.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		var entries []string
		for _, line := range strings.Split(string(data), "\n") {
			if line != "" {
				entries = append(entries, line)
			}
		}

		res := dts.InspectChain(entries, verifyStrict)
		if res.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "chain valid (%d entries)\n", res.EntriesChecked)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chain INVALID: broken at entry %d\n", res.BrokenAt)
		if res.ExpectedHash != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  expected %s\n  actual   %s\n",
				res.ExpectedHash, res.ActualHash)
		}
		return fmt.Errorf("verification failed")
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <device-id>",
	Short: "Print a device's archive as JSONL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openDeviceStore(args[0])
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := dts.ReadAll(st)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), e)
		}
		return nil
	},
}

var (
	uploadURL   string
	uploadProto bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <device-id>",
	Short: "Upload a device's archive to a collector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID := args[0]
		st, err := openDeviceStore(deviceID)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := dts.ReadAll(st)
		if err != nil {
			return err
		}

		transport := dts.NewHTTPTransport(uploadURL)
		transport.UseProto = uploadProto
		accepted, err := transport.SendBatch(deviceID, entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d entries for %s\n", accepted, deviceID)
		return nil
	},
}

// collectorConfig is the yaml configuration for serve.
type collectorConfig struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

func loadCollectorConfig(path string) (collectorConfig, error) {
	cfg := collectorConfig{Listen: ":8440"}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8440"
	}
	return cfg, nil
}

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCollectorConfig(serveConfigPath)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		collector := dts.NewCollector(logger)

		// Re-open archives for devices seen in a previous run so their
		// chains keep accumulating.
		if cfg.DataDir != "" {
			if err := registerExistingStores(collector, cfg.DataDir); err != nil {
				return err
			}
		}

		logger.Info("collector listening", "addr", cfg.Listen, "tls", cfg.TLSCert != "")
		if cfg.TLSCert != "" {
			return collector.ListenAndServeTLS(cfg.Listen, cfg.TLSCert, cfg.TLSKey)
		}
		return collector.ListenAndServe(cfg.Listen)
	},
}

func registerExistingStores(c *dts.Collector, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return err
	}
	dirs, err := os.ReadDir(dataDir)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		st, err := dts.OpenFileStore(filepath.Join(dataDir, d.Name()))
		if err != nil {
			return fmt.Errorf("open archive for %s: %w", d.Name(), err)
		}
		c.RegisterStore(d.Name(), st)
	}
	return nil
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Scripted adapter walkthrough",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		pump := dts.NewMedTechAdapter("PUMP-0042")
		var entries []string
		entries = append(entries, pump.LogPOSTResult(true, "all checks nominal"))
		entries = append(entries, pump.LogMedicationEvent("infusion_started", "saline", 500, dts.UserOperator))
		entries = append(entries, pump.LogSafetyAlarm("occlusion", "high"))
		entries = append(entries, pump.LogFirmwareUpdate("2.1.0", "2.2.0", dts.UserAdmin))

		for _, e := range entries {
			fmt.Fprintln(out, e)
		}

		fmt.Fprintf(out, "\nsequence: %d\nchain digest: %s\n",
			pump.Chain().SequenceNumber(), pump.Chain().ChainDigest())
		fmt.Fprintf(out, "linkage verified: %v\nstrict verified: %v\n",
			dts.VerifyChain(entries), dts.VerifyChainStrict(entries))
		return nil
	},
}

func parseUserID(s string) (dts.UserID, error) {
	switch strings.ToLower(s) {
	case "system":
		return dts.UserSystem, nil
	case "admin":
		return dts.UserAdmin, nil
	case "operator":
		return dts.UserOperator, nil
	case "service":
		return dts.UserService, nil
	case "unauthorized":
		return dts.UserUnauthorized, nil
	}
	return 0, fmt.Errorf("unknown user %q", s)
}

func parseSeverity(s string) (dts.Severity, error) {
	switch strings.ToLower(s) {
	case "debug":
		return dts.SeverityDebug, nil
	case "info":
		return dts.SeverityInfo, nil
	case "warning":
		return dts.SeverityWarning, nil
	case "error":
		return dts.SeverityError, nil
	case "critical":
		return dts.SeverityCritical, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}
