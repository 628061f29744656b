package review

import (
	"context"
	"fmt"
)

// Task is one unit of review work: a pull request at a specific head commit.
type Task struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
	HeadSHA  string `json:"head_sha"`
}

// DedupeKey identifies the task for at-most-once processing.
func (t Task) DedupeKey() string {
	return fmt.Sprintf("%s/%s#%d@%s", t.Owner, t.Repo, t.PRNumber, t.HeadSHA)
}

// Validate reports a missing field.
func (t Task) Validate() error {
	switch {
	case t.Owner == "":
		return fmt.Errorf("task is missing owner")
	case t.Repo == "":
		return fmt.Errorf("task is missing repo")
	case t.PRNumber <= 0:
		return fmt.Errorf("task has invalid PR number %d", t.PRNumber)
	case t.HeadSHA == "":
		return fmt.Errorf("task is missing head SHA")
	}
	return nil
}

// Finding is one remark from the reviewer at an absolute new-file line.
type Finding struct {
	Line int
	Body string
}

// Valid reports whether the finding can be attached to a line.
func (f Finding) Valid() bool {
	return f.Line > 0 && f.Body != ""
}

// Comment is a finding bound to a file.
type Comment struct {
	Path string
	Line int
	Body string
}

// Status is the terminal outcome of a task.
type Status string

const (
	StatusSkipped  Status = "skipped"
	StatusReviewed Status = "reviewed"
	StatusFailed   Status = "failed"
)

// Result is returned by Service.ProcessReview.
type Result struct {
	Status   Status
	Comments []Comment
}

// Disposition is the overall review verdict.
type Disposition string

const (
	DispositionApprove Disposition = "APPROVE"
	DispositionComment Disposition = "COMMENT"
)

// DispositionFor approves a review with no comments.
func DispositionFor(comments []Comment) Disposition {
	if len(comments) == 0 {
		return DispositionApprove
	}
	return DispositionComment
}

// Conclusion is the final state of a status check.
type Conclusion string

const (
	ConclusionSuccess Conclusion = "success"
	ConclusionFailure Conclusion = "failure"
)

// CheckRun identifies an opened status check.
type CheckRun struct {
	Owner string
	Repo  string
	ID    int64
}

// Submission is one batched review posted against a pull request.
type Submission struct {
	Owner       string
	Repo        string
	PRNumber    int
	HeadSHA     string
	Body        string
	Disposition Disposition
	Comments    []Comment
}

// DiffSource fetches the full unified diff of a pull request.
type DiffSource interface {
	FetchDiff(ctx context.Context, owner, repo string, number int) (string, error)
}

// CheckSink manages the status check lifecycle.
type CheckSink interface {
	OpenCheck(ctx context.Context, owner, repo, headSHA string) (CheckRun, error)
	CloseCheck(ctx context.Context, run CheckRun, conclusion Conclusion, summary string) error
}

// ReviewSink posts the aggregated review.
type ReviewSink interface {
	SubmitReview(ctx context.Context, sub Submission) error
}

// Reviewer critiques the diff of a single file. Its output is untrusted.
type Reviewer interface {
	ReviewFile(ctx context.Context, path, diffText string) ([]Finding, error)
}

// Admitter admits each dedupe key once per expiry window.
type Admitter interface {
	Admit(ctx context.Context, key string) (bool, error)
}
