// Command indieauthctl administra el almacén de credenciales IndieAuth:
// migraciones, claves de firma, revocación y mantenimiento.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/app"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/config"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
)

type cli struct {
	ConfigPath string
	EnvFile    string
	OutFormat  string // "json" | "text"

	cfg *config.Config
}

func (c *cli) load() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if c.EnvFile != "" {
		_ = godotenv.Load(c.EnvFile)
	}
	var (
		cfg *config.Config
		err error
	)
	if c.ConfigPath != "" {
		cfg, err = config.Load(c.ConfigPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "indieauthctl"})
	c.cfg = cfg
	return cfg, nil
}

// open arma el container y lo pasa a fn junto con un ctx cuyo logger lleva
// el comando; siempre cierra el container.
func (c *cli) open(cmd *cobra.Command, fn func(context.Context, *app.Container) error) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	ctx := logger.WithFields(cmd.Context(), logger.Component("indieauthctl"), logger.Op(cmd.Name()))
	ct, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer ct.Close()
	return fn(ctx, ct)
}

// print escribe v como JSON indentado o como texto key=value.
func (c *cli) print(v any) {
	if c.OutFormat == "json" {
		b, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(b))
		return
	}
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			fmt.Printf("%s=%v\n", k, t[k])
		}
	default:
		fmt.Println(t)
	}
}

func main() {
	c := &cli{
		ConfigPath: envOr("INDIEAUTH_CONFIG", ""),
		EnvFile:    envOr("INDIEAUTH_ENV_FILE", ".env"),
		OutFormat:  envOr("INDIEAUTH_OUT", "text"),
	}

	root := &cobra.Command{
		Use:           "indieauthctl",
		Short:         "CLI admin del almacén de credenciales IndieAuth",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.OutFormat {
			case "json", "text":
				return nil
			}
			return fmt.Errorf("formato de salida inválido %q (json|text)", c.OutFormat)
		},
	}
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", c.ConfigPath, "Ruta al YAML de config (env INDIEAUTH_CONFIG)")
	root.PersistentFlags().StringVar(&c.EnvFile, "env-file", c.EnvFile, "Archivo .env a cargar antes de la config")
	root.PersistentFlags().StringVar(&c.OutFormat, "out", c.OutFormat, "Formato de salida: json|text")

	root.AddCommand(
		migrateCmd(c),
		keysCmd(c),
		revokeCmd(c),
		revokeRefreshCmd(c),
		revokeAllCmd(c),
		blacklistedCmd(c),
		cacheStatsCmd(c),
		codeCmd(c),
		purgeCodesCmd(c),
		historyCmd(c),
		decodeCmd(c),
		verifyCmd(c),
	)

	err := root.ExecuteContext(context.Background())
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
