package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/app/archive"
	"github.com/PabloGalante/ryokai-gateway/internal/app/conversation"
	"github.com/PabloGalante/ryokai-gateway/internal/config"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

func newExportCmd(configPath *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the plain-text archive of a session",
		Long:  "Print the archive of a session from the configured store. Without --session the active session is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			kv, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					observability.Logger().Warn("closing store", zap.Error(err))
				}
			}()

			svc, err := conversation.Open(ctx, kv, newBackends(cfg), serviceOptions(cfg, false))
			if err != nil {
				return err
			}

			id := domain.SessionID(sessionID)
			if id == "" {
				id = svc.ActiveSession().ID
			}
			_, doc, err := archive.NewService(svc, nil).Export(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id to export")
	return cmd
}
