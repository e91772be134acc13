// Command todoctl is a terminal client for the todo API.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BuzzLyutic/todo-api/internal/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// session связывает кэш сессии, REST-клиент и сторы для одной команды.
type session struct {
	api   *client.API
	auth  *client.AuthStore
	tasks *client.TaskStore
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var (
		cfgFile string
		s       = &session{}
	)

	root := &cobra.Command{
		Use:           "todoctl",
		Short:         "Manage your personal task list from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cfgFile); err != nil {
				return err
			}
			cache := client.NewSessionCache(v.GetString("session_file"))
			s.api = client.NewAPI(v.GetString("api_url"), cache)
			s.auth = client.NewAuthStore(s.api, cache)
			s.tasks = client.NewTaskStore(s.api)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.todoctl.yaml)")
	root.PersistentFlags().String("api-url", "http://localhost:8080", "base URL of the todo API")
	root.PersistentFlags().String("session-file", defaultSessionFile(), "where the login session is kept")
	v.BindPFlag("api_url", root.PersistentFlags().Lookup("api-url"))
	v.BindPFlag("session_file", root.PersistentFlags().Lookup("session-file"))

	root.AddCommand(
		newRegisterCmd(s),
		newLoginCmd(s),
		newLogoutCmd(s),
		newForgotPasswordCmd(s),
		newResetPasswordCmd(s),
		newWhoamiCmd(s),
		newListCmd(s),
		newAddCmd(s),
		newDoneCmd(s, true),
		newDoneCmd(s, false),
		newEditCmd(s),
		newRemoveCmd(s),
	)
	return root
}

// loadConfig: флаги > TODOCTL_* > файл конфигурации > значения по умолчанию.
func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("todoctl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(".todoctl")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".todoctl-session.json"
	}
	return filepath.Join(home, ".todoctl", "session.json")
}
