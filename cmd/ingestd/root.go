package main

import (
	"log"

	"github.com/spf13/cobra"
)

// stdLogger adapts the standard library logger to the Logger interface
// every subsystem takes by constructor injection.
type stdLogger struct{}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	log.Printf("[DEBUG] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, keysAndValues)
}

var rootCmd = &cobra.Command{
	Use:   "ingestd",
	Short: "Multi-tenant SCADA ingestion runtime",
	Long: `ingestd polls well-site protocol connections on behalf of every active
tenant, validates and buffers the readings it collects, and writes them to
each tenant's own time-series store.

Use "ingestd serve" to start the runtime.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
