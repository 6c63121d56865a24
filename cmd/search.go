package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/corpus"
)

func searchCMD() *cobra.Command {
	var (
		cfgPath     string
		k           int
		chapter     string
		contentType string
		full        bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic search over the study material, no answer generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			filter := corpus.Filter{Chapter: chapter, ContentType: contentType}
			results, err := pipe.Search(cmd.Context(), args[0], k, filter)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for i, r := range results {
				fmt.Printf("[%d] %.4f  %s (chapter %s, %s)\n",
					i+1, r.Score, r.SectionHeader, r.Metadata.ChapterNum, r.ChunkID)
				if full {
					fmt.Printf("    %s\n", r.Summary)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "results to return (default 5)")
	cmd.Flags().StringVar(&chapter, "chapter", "", "restrict to one chapter")
	cmd.Flags().StringVar(&contentType, "content-type", "", "restrict to video or text passages")
	cmd.Flags().BoolVar(&full, "summaries", false, "print passage summaries")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
