package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/corpus"
)

func corpusCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Validate and embed the cleaned study material",
	}
	cmd.AddCommand(corpusValidateCMD(), corpusEmbedCMD())
	return cmd
}

func corpusValidateCMD() *cobra.Command {
	var (
		cfgPath    string
		chunksDir  string
		embeddings string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check chunk files, and optionally an embedding file, for defects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if chunksDir == "" {
				chunksDir = cfg.Corpus.ChunksDir
			}
			passages, err := corpus.LoadChunkDir(chunksDir)
			if err != nil {
				return err
			}

			report := corpus.Validate(passages)
			fmt.Printf("chunks: %d\n", report.TotalChunks)
			for chapter, n := range report.Chapters {
				fmt.Printf("  chapter %s: %d\n", chapter, n)
			}
			for contentType, n := range report.ContentTypes {
				fmt.Printf("  %s: %d\n", contentType, n)
			}
			for _, issue := range report.Issues {
				fmt.Println(issue)
			}

			issues := len(report.Issues)
			if embeddings != "" {
				file, err := corpus.LoadEmbeddings(embeddings)
				if err != nil {
					return err
				}
				embIssues := corpus.ValidateEmbeddings(file, cfg.Embedding.Dimension)
				for _, issue := range embIssues {
					fmt.Println(issue)
				}
				issues += len(embIssues)
			}
			if issues > 0 {
				return fmt.Errorf("validation found %d issues", issues)
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&chunksDir, "chunks", "", "chunk directory (default from config)")
	cmd.Flags().StringVar(&embeddings, "embeddings", "", "embedding file to check as well")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}

func corpusEmbedCMD() *cobra.Command {
	var (
		cfgPath   string
		chunksDir string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute embeddings for the cleaned chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if chunksDir == "" {
				chunksDir = cfg.Corpus.ChunksDir
			}
			if out == "" {
				out = cfg.Corpus.EmbeddingsFile
			}

			passages, err := corpus.LoadChunkDir(chunksDir)
			if err != nil {
				return err
			}
			if report := corpus.Validate(passages); !report.OK() {
				for _, issue := range report.Issues {
					fmt.Println(issue)
				}
				return fmt.Errorf("corpus failed validation with %d issues", len(report.Issues))
			}

			embedder, err := buildEmbedder(cfg)
			if err != nil {
				return err
			}
			embedded, err := corpus.NewEmbedPipeline(embedder, cfg.Corpus.EmbedBatch).Run(cmd.Context(), passages)
			if err != nil {
				return err
			}
			if err := corpus.SaveEmbeddings(out, embedder.Model(), embedded); err != nil {
				return err
			}
			fmt.Printf("wrote %d embeddings to %s\n", len(embedded), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&chunksDir, "chunks", "", "chunk directory (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "output embedding file (default from config)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
