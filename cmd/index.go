package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/index"
)

func indexCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index",
	}
	cmd.AddCommand(indexCreateCMD(), indexUploadCMD(), indexInfoCMD(), indexDeleteCMD())
	return cmd
}

func indexCreateCMD() *cobra.Command {
	var (
		cfgPath  string
		recreate bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the collection with payload indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.EnsureCollection(cmd.Context(), recreate); err != nil {
				return err
			}
			fmt.Printf("collection %s ready\n", store.Collection())
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate an existing collection")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}

func indexUploadCMD() *cobra.Command {
	var (
		cfgPath    string
		embeddings string
		batch      int
		create     bool
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload an embedding file into the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if embeddings == "" {
				embeddings = cfg.Corpus.EmbeddingsFile
			}
			file, err := corpus.LoadEmbeddings(embeddings)
			if err != nil {
				return err
			}
			if issues := corpus.ValidateEmbeddings(file, cfg.Embedding.Dimension); len(issues) > 0 {
				for _, issue := range issues {
					fmt.Println(issue)
				}
				return fmt.Errorf("embedding file failed validation with %d issues", len(issues))
			}

			store, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if create {
				if err := store.EnsureCollection(ctx, false); err != nil {
					return err
				}
			}
			n, err := store.Upsert(ctx, file.Chunks, batch)
			if err != nil {
				return fmt.Errorf("uploaded %d of %d points: %w", n, len(file.Chunks), err)
			}
			fmt.Printf("uploaded %d points to %s\n", n, store.Collection())
			return nil
		},
	}
	cmd.Flags().StringVar(&embeddings, "embeddings", "", "embedding file (default from config)")
	cmd.Flags().IntVar(&batch, "batch", index.DefaultUploadBatch, "points per upsert request")
	cmd.Flags().BoolVar(&create, "create", false, "create the collection first if missing")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}

func indexInfoCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show collection status and point count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			info, err := store.Describe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("collection: %s\n", info.Collection)
			fmt.Printf("status:     %s\n", info.Status)
			fmt.Printf("points:     %d\n", info.PointsCount)
			fmt.Printf("dimension:  %d (%s)\n", info.VectorSize, info.Distance)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}

func indexDeleteCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Drop the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Drop(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("collection %s dropped\n", store.Collection())
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
