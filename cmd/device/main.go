// Command device is a terminal stand-in for the principal and observer
// apps: it registers and links identities, shares location, watches a
// principal and runs the SOS escalation.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/immxrtalbeast/safewatch/lib/logger/slogpretty"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:   "device",
		Short: "Terminal client for the safewatch relay",
	}
	registerCmd = &cobra.Command{
		Use:   "register-principal",
		Short: "Register a protected user and print its share code and token",
		RunE:  runRegister,
	}
	linkCmd = &cobra.Command{
		Use:   "link [code]",
		Short: "Link an observer to a principal's share code",
		Args:  cobra.ExactArgs(1),
		RunE:  runLink,
	}
	shareCmd = &cobra.Command{
		Use:   "share",
		Short: "Share the principal's location with its observers",
		RunE:  runShare,
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the linked principal's location and alerts",
		RunE:  runWatch,
	}
	sosCmd = &cobra.Command{
		Use:   "sos",
		Short: "Confirm an emergency and run the escalation sequence",
		RunE:  runSOS,
	}

	name          string
	contact       string
	lat           float64
	lng           float64
	night         bool
	shareInterval time.Duration
	countryPrefix string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("SAFEWATCH_SERVER", "http://localhost:8080"), "relay server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("SAFEWATCH_TOKEN"), "session token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	registerCmd.Flags().StringVar(&name, "name", "", "display name")
	registerCmd.Flags().StringVar(&contact, "contact", "", "emergency contact phone number")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("contact")

	linkCmd.Flags().StringVar(&name, "name", "", "display name")
	_ = linkCmd.MarkFlagRequired("name")

	for _, cmd := range []*cobra.Command{shareCmd, sosCmd} {
		cmd.Flags().Float64Var(&lat, "lat", 0, "current latitude")
		cmd.Flags().Float64Var(&lng, "lng", 0, "current longitude")
		_ = cmd.MarkFlagRequired("lat")
		_ = cmd.MarkFlagRequired("lng")
	}
	shareCmd.Flags().BoolVar(&night, "night", false, "night mode: keep streaming the location")
	shareCmd.Flags().DurationVar(&shareInterval, "interval", 5*time.Second, "night mode sample interval")

	sosCmd.Flags().StringVar(&contact, "contact", "", "override the registered emergency contact")
	sosCmd.Flags().StringVar(&countryPrefix, "country-prefix", "+91", "prefix for contacts without an international marker")

	rootCmd.AddCommand(registerCmd, linkCmd, shareCmd, watchCmd, sosCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: level},
	}
	return slog.New(opts.NewPrettyHandler(os.Stderr))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
