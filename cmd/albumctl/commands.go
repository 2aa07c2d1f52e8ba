package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"albumrender/internal/bootstrap"
	"albumrender/internal/domain"
	"albumrender/internal/infra"
	"albumrender/internal/render"
)

// errRenderFailed makes a failed render exit non-zero after its result was printed.
var errRenderFailed = errors.New("render failed")

// runtimeFactory builds the collaborators a command needs. Tests replace it.
type runtimeFactory func(ctx context.Context) (renderer, domain.JobRepository, func(), error)

type renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

func defaultRuntime(ctx context.Context) (renderer, domain.JobRepository, func(), error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv)
	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return rt.Service, rt.Jobs, rt.Close, nil
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultRuntime)
}

func newRootCmdWith(factory runtimeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "albumctl",
		Short:         "Operate the family album renderer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRenderCmd(factory), newJobCmd(factory))
	return root
}

func newRenderCmd(factory runtimeFactory) *cobra.Command {
	var familyID, start, end, requestedBy string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an album in-process and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			req := render.Request{FamilyID: familyID, Start: start, End: end}
			if by := strings.TrimSpace(requestedBy); by != "" {
				req.RequestedBy = &by
			}
			res, err := svc.Render(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK {
				return errRenderFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&familyID, "family", "", "family id (UUID)")
	cmd.Flags().StringVar(&start, "start", "", "first day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&requestedBy, "requested-by", "albumctl", "actor recorded on the job")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newJobCmd(factory runtimeFactory) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Print a render job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, jobs, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			job, err := jobs.GetByID(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("job %s not found", id)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobView(job))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "job id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func jobView(job *domain.RenderJob) map[string]any {
	return map[string]any{
		"id":           job.ID,
		"family_id":    job.FamilyID,
		"period_start": job.Period.Start.Format(domain.DateLayout),
		"period_end":   job.Period.End.Format(domain.DateLayout),
		"status":       job.Status,
		"pdf_url":      job.PDFURL,
		"page_count":   job.PageCount,
		"error":        job.Error,
		"requested_by": job.RequestedBy,
		"requested_at": job.RequestedAt,
		"finished_at":  job.FinishedAt,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
