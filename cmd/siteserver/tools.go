package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/agencysite/pkg/logging"
	tlsutil "github.com/psantana5/agencysite/pkg/tls"
)

var (
	certFile   string
	keyFile    string
	certHosts  string
	rotateDir  string
	rotateKeep int
)

var gencertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Generate a self-signed TLS certificate",
	RunE:  runGencert,
}

var logrotateCmd = &cobra.Command{
	Use:   "logrotate",
	Short: "Print a logrotate configuration for the server logs",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), logging.GenerateLogrotateConfig(logging.RotateOptions{
			Component: "siteserver",
			Dir:       rotateDir,
			Keep:      rotateKeep,
		}))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(gencertCmd)
	rootCmd.AddCommand(logrotateCmd)
	rootCmd.AddCommand(configCmd)

	logrotateCmd.Flags().StringVar(&rotateDir, "dir", logging.DefaultLogDir, "log directory")
	logrotateCmd.Flags().IntVar(&rotateKeep, "keep", 14, "number of rotated files to keep")

	gencertCmd.Flags().StringVar(&certFile, "cert", "", "certificate output path (default tls.cert_file)")
	gencertCmd.Flags().StringVar(&keyFile, "key", "", "key output path (default tls.key_file)")
	gencertCmd.Flags().StringVar(&certHosts, "hosts", "", "comma-separated hostnames and IPs to include as SANs")
}

func runGencert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if certFile == "" {
		certFile = cfg.TLS.CertFile
	}
	if keyFile == "" {
		keyFile = cfg.TLS.KeyFile
	}
	hosts := append([]string{}, cfg.TLS.Hosts...)
	for _, h := range strings.Split(certHosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}

	if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, tlsutil.CertOptions{
		CommonName: "agencysite",
		Hosts:      hosts,
	}); err != nil {
		return fmt.Errorf("failed to generate certificate: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Certificate generated successfully")
	fmt.Fprintf(out, "  Certificate: %s\n", certFile)
	fmt.Fprintf(out, "  Key: %s\n", keyFile)
	if len(hosts) > 0 {
		fmt.Fprintf(out, "  Additional SANs: %v\n", hosts)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
