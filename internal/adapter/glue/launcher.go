// Package glue launches pipeline stages as AWS Glue jobs.
package glue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	awsglue "github.com/aws/aws-sdk-go/service/glue"
	"github.com/aws/aws-sdk-go/service/glue/glueiface"

	"github.com/V4T54L/medallion/internal/domain"
	"github.com/V4T54L/medallion/internal/pkg/poll"
)

const crawlerReady = "READY"

// Options names the Glue resources used for each stage.
type Options struct {
	// CrawlerName is refreshed before bronze_to_silver runs. Empty skips it.
	CrawlerName string
	Jobs        map[domain.Stage]string
	Backoff     poll.Backoff
}

// Launcher implements domain.StageLauncher and domain.JobStatusReader.
type Launcher struct {
	client glueiface.GlueAPI
	opts   Options
	logger *slog.Logger
}

// New creates a launcher using sess.
func New(sess *session.Session, opts Options, logger *slog.Logger) *Launcher {
	return NewWithClient(awsglue.New(sess), opts, logger)
}

// NewWithClient creates a launcher from an explicit client.
func NewWithClient(client glueiface.GlueAPI, opts Options, logger *slog.Logger) *Launcher {
	return &Launcher{client: client, opts: opts, logger: logger.With("component", "glue_launcher")}
}

// Launch starts the job for inv.Stage and returns the job run id. The bronze
// crawler is started and awaited first so that the catalog sees the new batch.
func (l *Launcher) Launch(ctx context.Context, inv domain.StageInvocation) (string, error) {
	job, ok := l.opts.Jobs[inv.Stage]
	if !ok || job == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownStage, inv.Stage)
	}

	if inv.Stage == domain.StageBronzeToSilver && l.opts.CrawlerName != "" {
		if err := l.startCrawler(ctx); err != nil {
			return "", err
		}
		if err := l.waitCrawlerReady(ctx); err != nil {
			return "", err
		}
	}

	out, err := l.client.StartJobRunWithContext(ctx, &awsglue.StartJobRunInput{
		JobName: aws.String(job),
		Arguments: map[string]*string{
			"--bucket":       aws.String(inv.Bucket),
			"--database":     aws.String(inv.Database),
			"--source_key":   aws.String(inv.Key),
			"--data_layer":   aws.String(string(inv.DataLayer)),
			"--trigger_time": aws.String(inv.TriggerTime.UTC().Format(time.RFC3339)),
			"--environment":  aws.String(inv.Environment),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start glue job %s: %w", job, err)
	}
	runID := aws.StringValue(out.JobRunId)
	l.logger.Info("glue job started", "job", job, "job_run_id", runID, "key", inv.Key)
	return runID, nil
}

func (l *Launcher) startCrawler(ctx context.Context) error {
	_, err := l.client.StartCrawlerWithContext(ctx, &awsglue.StartCrawlerInput{Name: aws.String(l.opts.CrawlerName)})
	if err == nil {
		l.logger.Info("crawler started", "crawler", l.opts.CrawlerName)
		return nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == awsglue.ErrCodeCrawlerRunningException {
		l.logger.Info("crawler already running", "crawler", l.opts.CrawlerName)
		return nil
	}
	return fmt.Errorf("failed to start crawler %s: %w", l.opts.CrawlerName, err)
}

// waitCrawlerReady polls until the crawler is idle again.
func (l *Launcher) waitCrawlerReady(ctx context.Context) error {
	err := poll.Until(ctx, l.opts.Backoff, func(ctx context.Context, attempt int) (bool, error) {
		out, err := l.client.GetCrawlerWithContext(ctx, &awsglue.GetCrawlerInput{Name: aws.String(l.opts.CrawlerName)})
		if err != nil {
			return false, fmt.Errorf("failed to get crawler %s: %w", l.opts.CrawlerName, err)
		}
		state := aws.StringValue(out.Crawler.State)
		l.logger.Debug("crawler state", "crawler", l.opts.CrawlerName, "state", state, "attempt", attempt)
		return state == crawlerReady, nil
	})
	if err != nil {
		return fmt.Errorf("crawler %s did not become ready: %w", l.opts.CrawlerName, err)
	}
	return nil
}

// LatestJobRuns returns the newest run of every configured job, ordered by job name.
func (l *Launcher) LatestJobRuns(ctx context.Context) ([]domain.JobStatus, error) {
	jobs := make([]string, 0, len(l.opts.Jobs))
	for _, job := range l.opts.Jobs {
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)

	statuses := make([]domain.JobStatus, 0, len(jobs))
	for _, job := range jobs {
		out, err := l.client.GetJobRunsWithContext(ctx, &awsglue.GetJobRunsInput{
			JobName:    aws.String(job),
			MaxResults: aws.Int64(1),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get runs of glue job %s: %w", job, err)
		}
		if len(out.JobRuns) == 0 {
			statuses = append(statuses, domain.JobStatus{Job: job, State: "NEVER_RUN"})
			continue
		}
		run := out.JobRuns[0]
		st := domain.JobStatus{
			Job:          job,
			RunID:        aws.StringValue(run.Id),
			State:        aws.StringValue(run.JobRunState),
			StartedOn:    aws.TimeValue(run.StartedOn),
			ErrorMessage: aws.StringValue(run.ErrorMessage),
		}
		if run.CompletedOn != nil {
			t := aws.TimeValue(run.CompletedOn)
			st.CompletedOn = &t
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
