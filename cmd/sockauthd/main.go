package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sockauth/sockauthd"
	"github.com/sockauth/sockauthd/creds"
)

var (
	socketPath string
	groupName  string
	storePath  string
	foreground bool
	usageAlias bool
)

var rootCmd = &cobra.Command{
	Use:   "sockauthd",
	Short: "local authentication broker for mail front-ends",
	Long: `sockauthd answers username/password checks over a group-restricted
unix socket so that a mail or SASL front-end never links the credential
store into its own process. It runs detached by default and enforces a
single instance through a locked pidfile.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&socketPath, "socket", "s", sockauthd.DefaultSocketPath, "path of the listening socket")
	flags.StringVarP(&groupName, "group", "g", sockauthd.DefaultSocketGroup, "group permitted to use the socket")
	flags.StringVarP(&storePath, "passwd", "p", sockauthd.DefaultStorePath, "path of the credential store file")
	flags.BoolVarP(&foreground, "foreground", "d", false, "stay attached to the terminal instead of detaching")
	// -? is the traditional help spelling for this daemon's users; route it
	// to the same usage text as -h
	flags.BoolVarP(&usageAlias, "usage", "?", false, "print usage and exit")
	flags.Lookup("usage").Hidden = true
}

func run(cmd *cobra.Command, args []string) error {
	if usageAlias {
		return cmd.Help()
	}
	l := sockauthd.NewLogger("sockauthd")
	cfg := sockauthd.Config{
		SocketPath: socketPath,
		Group:      groupName,
		Foreground: foreground,
	}
	s := sockauthd.New(cfg, creds.NewFileStore(storePath), sockauthd.WithLogger(l))
	if err := s.Run(); err != nil {
		l.Warn("daemon failed", "err", err)
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
