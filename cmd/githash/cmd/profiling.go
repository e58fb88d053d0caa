package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime/trace"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Profiling state for the lifetime of one command invocation.
var (
	profileServer *http.Server
	traceFile     *os.File
)

func init() {
	rootCmd.PersistentFlags().String("pprof-addr", "", "serve pprof endpoints on this address while the command runs")
	rootCmd.PersistentFlags().String("trace", "", "write an execution trace to this file")
	viper.BindPFlag("pprof_addr", rootCmd.PersistentFlags().Lookup("pprof-addr"))
	viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return startProfiling()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		stopProfiling()
	}
}

// startProfiling honors the --pprof-addr and --trace flags. The pprof
// server runs for the duration of the command; long operations such as
// hashing many directories can then be profiled on demand.
func startProfiling() error {
	if addr := viper.GetString("pprof_addr"); addr != "" {
		mux := http.NewServeMux()
		// Register the handlers on a private mux so nothing else in the
		// process leaks endpoints onto it.
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		profileServer = &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := profileServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "pprof server: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "pprof listening on %s; try: go tool pprof http://%s/debug/pprof/profile\n", addr, addr)
	}

	if path := viper.GetString("trace"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			return fmt.Errorf("start trace: %w", err)
		}
		traceFile = f
	}
	return nil
}

func stopProfiling() {
	if profileServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := profileServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "pprof shutdown: %v\n", err)
		}
		profileServer = nil
	}
	if traceFile != nil {
		trace.Stop()
		traceFile.Close()
		traceFile = nil
	}
}
