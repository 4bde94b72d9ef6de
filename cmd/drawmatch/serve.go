package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerock/drawmatch/internal/training"
	"github.com/ledgerock/drawmatch/internal/web"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP matching API",
		Long: `Serve exposes matching, corrections, draw funding, and vendor history
over HTTP for the surrounding draw-management application.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			addr := viper.GetString("server.addr")
			if addr == "" {
				addr = ":8080"
			}

			server := web.NewServer(addr, store, buildEngine(store), training.NewCapturer(store))
			return server.Start(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}
