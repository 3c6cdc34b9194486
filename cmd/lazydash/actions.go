package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joseda-hg/lazydash/internal/model"
	"github.com/Joseda-hg/lazydash/internal/screens"
)

func syncCmd(f *flags) *cobra.Command {
	var syncType string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the statistics from the raw database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch syncType {
			case model.SyncHourly, model.SyncDaily, model.SyncFull:
			default:
				return fmt.Errorf("unknown sync type %q (want hourly, daily or full)", syncType)
			}
			a, err := setup(cmd, f, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			msg, err := screens.RunSync(ctx, a.client, syncType)
			if err != nil {
				a.logger.Error("sync failed", zap.String("type", syncType), zap.Error(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&syncType, "type", "t", model.SyncHourly, "sync type: hourly, daily or full")
	return cmd
}

type evaluateFlags struct {
	knowledgeID int64
	start       string
	end         string
	days        int
	force       bool
}

func evaluateCmd(f *flags) *cobra.Command {
	ef := &evaluateFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate RAG records and wait for the job to finish",
		Long: `Evaluates the pending records of one knowledge base (--kb) or of a date
range. Without --start/--end the range is the last --days days.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, f, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			days := ef.days
			if days <= 0 {
				days = a.cfg.DefaultDays
			}
			req, err := ef.request(time.Now(), days)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			msg, err := screens.RunEvaluation(ctx, a.client, req, a.cfg.PollInterval, printer(out))
			if err != nil {
				a.logger.Error("evaluation failed", zap.String("mode", req.Mode), zap.Error(err))
				return err
			}
			fmt.Fprintln(out, msg)
			return nil
		},
	}
	cmd.Flags().Int64Var(&ef.knowledgeID, "kb", 0, "knowledge base id")
	cmd.Flags().StringVar(&ef.start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&ef.end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().IntVar(&ef.days, "days", 0, "range length when no dates are given")
	cmd.Flags().BoolVar(&ef.force, "force", false, "re-evaluate records that already have a result")
	return cmd
}

// request builds the evaluation request the flags describe.
func (ef *evaluateFlags) request(now time.Time, days int) (model.EvaluationRequest, error) {
	if ef.knowledgeID < 0 {
		return model.EvaluationRequest{}, fmt.Errorf("invalid knowledge base id %d", ef.knowledgeID)
	}
	if ef.knowledgeID > 0 {
		id := ef.knowledgeID
		return model.EvaluationRequest{Mode: model.EvaluateByKnowledgeBase, KnowledgeID: &id, Force: ef.force}, nil
	}

	start, end := model.LastDays(now, days)
	if ef.start != "" || ef.end != "" {
		var err error
		if start, err = model.ParseDate(ef.start); err != nil {
			return model.EvaluationRequest{}, fmt.Errorf("--start: %w", err)
		}
		if end, err = model.ParseDate(ef.end); err != nil {
			return model.EvaluationRequest{}, fmt.Errorf("--end: %w", err)
		}
		if start.IsZero() || end.IsZero() {
			return model.EvaluationRequest{}, fmt.Errorf("--start and --end go together")
		}
		if start > end {
			start, end = end, start
		}
	}
	return model.EvaluationRequest{Mode: model.EvaluateByDateRange, StartDate: start, EndDate: end, Force: ef.force}, nil
}

// printer writes each progress line once.
func printer(w io.Writer) func(string) {
	last := ""
	return func(line string) {
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(w, line)
	}
}
