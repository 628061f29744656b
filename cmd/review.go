package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/prreviewer/internal/review"
)

// ReviewCommand returns the review command
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review one pull request now",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Log the check and review instead of posting them",
			},
			&cli.StringFlag{
				Name:  "sha",
				Usage: "Head commit to review (default: the pull request's current head)",
			},
		},
		ArgsUsage: "OWNER/REPO#NUMBER | PR_URL",
		Action:    runReview,
	}
}

func runReview(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: pull request")
	}
	task, err := parseTarget(c.Args().Get(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	rt, err := buildRuntime(ctx, cfg, buildOptions{
		dryRun:   c.Bool("dry-run"),
		registry: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	task.HeadSHA = c.String("sha")
	if task.HeadSHA == "" {
		task.HeadSHA, err = rt.github.HeadSHA(ctx, task.Owner, task.Repo, task.PRNumber)
		if err != nil {
			return err
		}
	}

	result, err := rt.service.ProcessReview(ctx, task)
	if err != nil {
		return fmt.Errorf("review failed: %w", err)
	}

	switch result.Status {
	case review.StatusSkipped:
		fmt.Printf("%s was already reviewed\n", task.DedupeKey())
	default:
		fmt.Printf("Reviewed %s: %d comment(s)\n", task.DedupeKey(), len(result.Comments))
	}
	return nil
}

// parseTarget accepts "owner/repo#123" or a pull request URL such as
// https://github.com/owner/repo/pull/123.
func parseTarget(s string) (review.Task, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") {
		return parsePullURL(s)
	}

	repoPart, numPart, ok := strings.Cut(s, "#")
	if !ok {
		return review.Task{}, fmt.Errorf("invalid pull request %q: expected OWNER/REPO#NUMBER", s)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return review.Task{}, fmt.Errorf("invalid repository %q: expected OWNER/REPO", repoPart)
	}
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return review.Task{}, fmt.Errorf("invalid pull request number %q", numPart)
	}
	return review.Task{Owner: owner, Repo: repo, PRNumber: n}, nil
}

func parsePullURL(raw string) (review.Task, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return review.Task{}, fmt.Errorf("invalid pull request URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" {
		return review.Task{}, fmt.Errorf("invalid pull request URL %q", raw)
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return review.Task{}, fmt.Errorf("invalid pull request number %q", parts[3])
	}
	return review.Task{Owner: parts[0], Repo: parts[1], PRNumber: n}, nil
}
