package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	glspserv "github.com/tliron/glsp/server"

	"github.com/upm-tools/upmls"
	"github.com/upm-tools/upmls/internal/lsp"
	"github.com/upm-tools/upmls/internal/registry"
)

func main() {
	var (
		debug       bool
		showVersion bool
	)

	cmd := &cobra.Command{
		Use:           "upmls",
		Short:         "Language server for Unity Package Manager manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(upmls.Version)
				return nil
			}

			// Logging goes to stderr; stdout carries the protocol stream.
			verbosity := 1
			if debug {
				verbosity = 2
			}
			commonlog.Configure(verbosity, nil)

			client := registry.NewClient(
				registry.WithUserAgent("upmls/"+upmls.Version),
				registry.WithAuthFunc(githubAuth),
			)
			service := registry.NewService(client)
			server := lsp.New(service, lsp.WithVersion(upmls.Version))

			return glspserv.NewServer(server.Handler(), "upmls", debug).RunStdio()
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// githubAuth attaches the GITHUB_TOKEN bearer token to GitHub requests
// only; other hosts get no credentials.
func githubAuth(rawURL string) (string, string) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" || !strings.Contains(rawURL, "github") {
		return "", ""
	}
	return "Authorization", "Bearer " + token
}
