package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xzinc/IPL/pkg/clients/admin"
)

const envPrefix = "IPLCTL"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "iplctl:", err)
		os.Exit(1)
	}
}

// cli carries the settings shared by every subcommand. Flags can also be
// set through IPLCTL_* environment variables, e.g. IPLCTL_API_KEY.
type cli struct {
	v *viper.Viper
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "iplctl",
		Short:         "Operate a running iplstore through its admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "admin API address")
	flags.String("api-key", "", "API key sent as X-API-Key")
	flags.String("user", "", "username for basic or ldap auth")
	flags.String("password", "", "password for basic or ldap auth")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.StringP("output", "o", "table", "output format: table or json")
	_ = c.v.BindPFlags(flags)

	root.AddCommand(
		c.statusCommand(),
		c.checkCommand(),
		c.switchCommand(),
		c.refreshCommand(),
		c.invalidateCommand(),
		c.pruneCommand(),
		c.configCommand(),
	)
	return root
}

func (c *cli) client() (*admin.Client, error) {
	return admin.NewClient(admin.Config{
		BaseURL:  c.v.GetString("server"),
		APIKey:   c.v.GetString("api-key"),
		Username: c.v.GetString("user"),
		Password: c.v.GetString("password"),
		Timeout:  c.v.GetDuration("timeout"),
	})
}

func (c *cli) jsonOutput() bool {
	return strings.EqualFold(c.v.GetString("output"), "json")
}
