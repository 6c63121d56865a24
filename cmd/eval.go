package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/exam"
)

func evalCMD() *cobra.Command {
	var (
		cfgPath   string
		questions string
		out       string
		k         int
		chapter   string
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Grade the pipeline against a multiple-choice question set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if questions == "" {
				return fmt.Errorf("--questions is required")
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			qs, err := exam.LoadQuestions(questions)
			if err != nil {
				return err
			}
			evaluator := exam.NewEvaluator(pipe, pipe.Tracker())
			summary, err := evaluator.Evaluate(cmd.Context(), qs, k, chapter)
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d/%d correct (%.1f%%)\n",
				summary.RunID, summary.Correct, summary.TotalQuestions, summary.Accuracy)
			fmt.Printf("cost: $%.4f total, $%.4f per question\n",
				summary.Usage.TotalCost, summary.CostPerQuestion)
			for _, r := range summary.Results {
				mark := "✗"
				if r.Correct {
					mark = "✓"
				}
				fmt.Printf("  %s %s: predicted %s, actual %s (%s confidence)\n",
					mark, r.QuestionID, r.PredictedAnswer, r.ActualAnswer, r.Confidence)
			}

			if out != "" {
				if err := exam.WriteReport(out, summary); err != nil {
					return err
				}
				fmt.Printf("report written to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&questions, "questions", "", "question file (json array or text blocks)")
	cmd.Flags().StringVar(&out, "out", "", "write the full report to this file")
	cmd.Flags().IntVar(&k, "k", 0, "documents to retrieve per question (default 10)")
	cmd.Flags().StringVar(&chapter, "chapter", "", "restrict retrieval to one chapter")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
