package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lysyi3m/rss-cast/app/database"
)

func (a *app) listJobs(ctx context.Context, w io.Writer, status string, limit int) error {
	jobStatus := database.JobStatus(status)
	if jobStatus != "" && !jobStatus.Valid() {
		return fmt.Errorf("invalid job status: %s", status)
	}

	jobs, err := a.jobRepo.ListJobs(ctx, jobStatus, max(limit, 1))
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintln(w, renderJobs(jobs))
	return nil
}

func renderJobs(jobs []database.Job) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Content", "Status", "Error", "Started", "Finished"})

	for _, job := range jobs {
		errText := job.ErrorKind
		if job.ErrorMessage != "" {
			errText = fmt.Sprintf("%s: %s", job.ErrorKind, job.ErrorMessage)
		}
		tw.AppendRow(table.Row{
			job.ID,
			job.ContentID,
			job.Status,
			errText,
			formatTime(job.StartedAt),
			formatTime(job.FinishedAt),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	return tw.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(time.Local).Format(time.DateTime)
}
