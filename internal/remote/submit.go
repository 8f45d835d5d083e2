package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/groundctl/gnd/internal/store"
)

// PushSubmission writes a locally collected submission to the survey's
// submissions subcollection. Retried with backoff; the outbox requeues on
// final failure, so this never needs to block for long outages.
func (c *Client) PushSubmission(ctx context.Context, sub store.Submission) error {
	var answers map[string]any
	if err := json.Unmarshal([]byte(sub.Answers), &answers); err != nil {
		return fmt.Errorf("decode answers for submission %s: %w", sub.ID, err)
	}

	doc := map[string]any{
		"loiId":    sub.LOIID,
		"jobId":    sub.JobID,
		"answers":  answers,
		"clientTs": sub.CreatedAt,
		"uploadTs": time.Now().UnixMilli(),
	}

	err := retry.Do(
		func() error {
			_, err := c.fs.Collection(c.surveysCol).
				Doc(sub.SurveyID).
				Collection("submissions").
				Doc(sub.ID).
				Set(ctx, doc)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("push submission %s: %w", sub.ID, err)
	}
	return nil
}
