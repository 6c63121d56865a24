package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/exam"
	"github.com/studyforge/certrag/internal/pipeline"
)

func examCMD() *cobra.Command {
	var (
		cfgPath  string
		scenario string
		options  []string
		k        int
		chapter  string
	)
	cmd := &cobra.Command{
		Use:   "exam [question]",
		Short: "Answer one multiple-choice question with scenario expansion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(options) < 2 {
				return fmt.Errorf("at least two --option values are required")
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			resp, err := pipe.AnswerExam(cmd.Context(), scenario, args[0], options, pipeline.ExamOptions{
				K:      k,
				Filter: corpus.Filter{Chapter: chapter},
			})
			if err != nil {
				return err
			}

			for i, opt := range options {
				marker := " "
				if exam.Letter(i) == resp.Answer {
					marker = ">"
				}
				fmt.Printf("%s %s. %s\n", marker, exam.Letter(i), opt)
			}
			fmt.Printf("\nanswer: %s (%s confidence)\n", resp.Answer, resp.Confidence)
			if resp.Reasoning != "" {
				fmt.Printf("reasoning: %s\n", resp.Reasoning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "", "scenario text preceding the question")
	cmd.Flags().StringArrayVar(&options, "option", nil, "answer option (repeat per choice)")
	cmd.Flags().IntVar(&k, "k", 0, "documents to retrieve (default 10)")
	cmd.Flags().StringVar(&chapter, "chapter", "", "restrict to one chapter")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
