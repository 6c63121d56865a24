package cmd

import (
	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/server"
)

func serveCMD() *cobra.Command {
	var (
		cfgPath string
		addr    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Address
			}
			return server.Run(addr, pipe, server.Options{
				JWTSecret: []byte(cfg.Server.JWTSecret),
				Debug:     cfg.General.Debug,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
