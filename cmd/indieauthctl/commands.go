package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/app"
	jwtx "github.com/dropDatabas3/hellojohn-indieauth/internal/jwt"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Crea/actualiza el esquema (solo driver sql; no-op en el resto)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				if err := ct.Tables.Migrate(ctx); err != nil {
					return err
				}
				c.print(map[string]any{"ok": true, "backend": ct.Tables.Conn().Name()})
				return nil
			})
		},
	}
}

func keysCmd(c *cli) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Claves de firma (JWKS privado)",
	}

	var n int
	var force bool
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera un JWKS Ed25519 nuevo en jwt.jwks_path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load()
			if err != nil {
				return err
			}
			path := cfg.JWT.JWKSPath
			if path == "" {
				return errors.New("jwt.jwks_path no configurado (env JWT_JWKS_PATH)")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s ya existe (usar --force para reemplazar)", path)
			}
			ks, err := jwtx.GenerateKeySet(n)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := ks.Save(path); err != nil {
				return err
			}
			c.print(map[string]any{"path": path, "kids": ks.KIDs()})
			return nil
		},
	}
	gen.Flags().IntVar(&n, "count", 1, "Cantidad de claves")
	gen.Flags().BoolVar(&force, "force", false, "Sobrescribir un JWKS existente")

	pub := &cobra.Command{
		Use:   "public",
		Short: "Imprime el JWKS público (sin material privado)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load()
			if err != nil {
				return err
			}
			ks, err := jwtx.LoadKeySet(cfg.JWT.JWKSPath)
			if err != nil {
				return err
			}
			b, err := ks.PublicJWKS()
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}

	keys.AddCommand(gen, pub)
	return keys
}

func revokeCmd(c *cli) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revoke <jti>",
		Short: "Revoca un access token por jti",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				out, err := ct.Service.MarkTokenAsRevoked(ctx, args[0], reason)
				if err != nil {
					return err
				}
				c.print(map[string]any{"status": string(out.Status), "reason": out.Reason, "message": out.Message})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Razón de la revocación")
	return cmd
}

func revokeRefreshCmd(c *cli) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revoke-refresh <token>",
		Short: "Revoca un refresh token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				out, err := ct.Service.MarkRefreshTokenAsRevoked(ctx, args[0], reason)
				if err != nil {
					return err
				}
				c.print(map[string]any{"status": string(out.Status), "reason": out.Reason, "message": out.Message})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Razón de la revocación")
	return cmd
}

func revokeAllCmd(c *cli) *cobra.Command {
	var reason string
	var yes bool
	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Revoca todos los access y refresh tokens activos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("operación masiva: confirmar con --yes")
			}
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				res, err := ct.Service.RevokeAllTokens(ctx, reason)
				if err != nil {
					return err
				}
				c.print(map[string]any{"access_tokens": res.AccessTokens, "refresh_tokens": res.RefreshTokens})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Razón de la revocación")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirmar")
	return cmd
}

func blacklistedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "blacklisted <jti>",
		Short: "Indica si un jti está revocado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				reason, ok, err := ct.Service.RevocationReason(ctx, args[0])
				if err != nil {
					return err
				}
				out := map[string]any{"jti": args[0], "blacklisted": ok}
				if ok {
					out["reason"] = reason
				}
				c.print(out)
				return nil
			})
		},
	}
}

func cacheStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-stats",
		Short: "Estadísticas del cache de revocaciones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				if err := ct.Cache.Ping(ctx); err != nil {
					return fmt.Errorf("cache ping: %w", err)
				}
				st, err := ct.Cache.Stats(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"driver": st.Driver,
					"keys":   st.Keys,
					"hits":   st.Hits,
					"misses": st.Misses,
				}
				if st.UsedMemory != "" {
					out["used_memory"] = st.UsedMemory
				}
				c.print(out)
				return nil
			})
		},
	}
}

func codeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "code <code>",
		Short: "Muestra un authorization code y su estado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				ac, status, err := ct.Service.RetrieveAuthorizationCode(ctx, args[0])
				if err != nil {
					return err
				}
				rec := map[string]any(ac.ToRecord())
				rec["status"] = string(status)
				c.print(rec)
				return nil
			})
		},
	}
}

func purgeCodesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-codes",
		Short: "Elimina authorization codes expirados",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				n, err := ct.Service.PurgeExpiredCodes(ctx)
				if err != nil {
					return err
				}
				c.print(map[string]any{"removed": n})
				return nil
			})
		},
	}
}

func historyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history <table> <key>",
		Short: "Lista las versiones de un registro (solo backend jsonl)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				t, ok := ct.Tables.ByName(args[0])
				if !ok {
					return fmt.Errorf("tabla desconocida %q", args[0])
				}
				h, ok := t.(store.Historian)
				if !ok {
					return fmt.Errorf("el backend %s no guarda historial", ct.Tables.Conn().Name())
				}
				versions, err := h.History(ctx, args[1])
				if err != nil {
					return err
				}
				if c.OutFormat == "json" {
					c.print(versions)
					return nil
				}
				for i, v := range versions {
					b, _ := json.Marshal(v)
					fmt.Printf("%d %s\n", i+1, b)
				}
				return nil
			})
		},
	}
}

func decodeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <jwt>",
		Short: "Decodifica el payload de un JWT sin verificar la firma",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := jwtx.SafeDecode(args[0])
			if err != nil {
				return err
			}
			c.print(map[string]any(claims))
			return nil
		},
	}
}

func verifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <jwt>",
		Short: "Verifica un access token contra jwt.jwks_url y la revocación",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd, func(ctx context.Context, ct *app.Container) error {
				claims, err := ct.Service.VerifyAccessToken(ctx, args[0])
				if err != nil {
					return err
				}
				c.print(map[string]any(claims))
				return nil
			})
		},
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
