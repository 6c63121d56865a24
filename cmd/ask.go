package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/pipeline"
)

func askCMD() *cobra.Command {
	var (
		cfgPath     string
		k           int
		chapter     string
		contentType string
		rerank      bool
		maxTokens   int
		temperature float64
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed study material",
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

			opts := pipeline.QueryOptions{
				K:           k,
				Filter:      corpus.Filter{Chapter: chapter, ContentType: contentType},
				MaxTokens:   maxTokens,
				Temperature: temperature,
			}
			ctx := cmd.Context()
			var resp *pipeline.Response
			if rerank {
				resp, err = pipe.QueryWithRerank(ctx, args[0], opts)
			} else {
				resp, err = pipe.Query(ctx, args[0], opts)
			}
			if err != nil {
				return err
			}

			fmt.Println(resp.Answer)
			if showSources {
				fmt.Println()
				for i, src := range resp.Sources {
					fmt.Printf("[%d] %s (chapter %s, score %.4f)\n",
						i+1, src.SectionHeader, src.Metadata.ChapterNum, src.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "documents to retrieve (default 3)")
	cmd.Flags().StringVar(&chapter, "chapter", "", "restrict to one chapter")
	cmd.Flags().StringVar(&contentType, "content-type", "", "restrict to video or text passages")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "oversample and rerank with the judge model")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "answer token budget (default 2500)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().BoolVar(&showSources, "sources", false, "list the source passages after the answer")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
