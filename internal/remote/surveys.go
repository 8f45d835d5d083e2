package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/avast/retry-go/v4"
	"github.com/groundctl/gnd/internal/store"
	"go.uber.org/zap"
)

// SurveyRecord is one survey document as seen in the list query.
type SurveyRecord struct {
	ID          string
	Title       string
	Description string
	Role        string
}

// SurveyBatch is one delivery from the live survey query: a full snapshot
// of the surveys visible to the user, or a stream error.
type SurveyBatch struct {
	Surveys []SurveyRecord
	Err     error
}

// SurveyContent is the full offline payload for one survey.
type SurveyContent struct {
	Survey store.Survey
	Jobs   []store.Job
	LOIs   []store.LOI
}

type surveyDoc struct {
	Title       string            `firestore:"title"`
	Description string            `firestore:"description"`
	ACL         map[string]string `firestore:"acl"`
}

type jobDoc struct {
	Name  string `firestore:"name"`
	Tasks []any  `firestore:"tasks"`
}

type loiDoc struct {
	JobID    string `firestore:"jobId"`
	Caption  string `firestore:"caption"`
	Geometry []byte `firestore:"geometry"`
}

// WatchSurveys runs a live Firestore query for the surveys whose ACL
// grants userEmail a visible role. Each query snapshot is delivered as a
// full SurveyBatch. The channel carries at least one batch, then one per
// remote change, and is closed when ctx is cancelled. Stream errors are
// delivered on the channel rather than terminating silently.
func (c *Client) WatchSurveys(ctx context.Context, userEmail string) (<-chan SurveyBatch, error) {
	// The ACL map is keyed by email; emails contain dots, so a FieldPath
	// is required rather than a dotted field string.
	query := c.fs.Collection(c.surveysCol).
		WherePath(firestore.FieldPath{"acl", userEmail}, "in", visibleRoles)

	out := make(chan SurveyBatch, 1)
	iter := query.Snapshots(ctx)

	go func() {
		defer close(out)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("survey query stream failed", zap.Error(err))
				out <- SurveyBatch{Err: fmt.Errorf("survey stream: %w", err)}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				out <- SurveyBatch{Err: fmt.Errorf("read snapshot: %w", err)}
				return
			}

			batch := SurveyBatch{Surveys: make([]SurveyRecord, 0, len(docs))}
			for _, doc := range docs {
				var sd surveyDoc
				if err := doc.DataTo(&sd); err != nil {
					c.logger.Warn("skipping malformed survey doc",
						zap.String("doc_id", doc.Ref.ID), zap.Error(err))
					continue
				}
				batch.Surveys = append(batch.Surveys, SurveyRecord{
					ID:          doc.Ref.ID,
					Title:       sd.Title,
					Description: sd.Description,
					Role:        sd.ACL[userEmail],
				})
			}

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// FetchSurvey reads one survey document plus its jobs and lois
// subcollections. Retried with backoff so a flaky link during activation
// does not immediately fail the download.
func (c *Client) FetchSurvey(ctx context.Context, surveyID string) (*SurveyContent, error) {
	var content *SurveyContent
	err := retry.Do(
		func() error {
			var err error
			content, err = c.fetchSurveyOnce(ctx, surveyID)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch survey %s: %w", surveyID, err)
	}
	return content, nil
}

func (c *Client) fetchSurveyOnce(ctx context.Context, surveyID string) (*SurveyContent, error) {
	ref := c.fs.Collection(c.surveysCol).Doc(surveyID)

	doc, err := ref.Get(ctx)
	if err != nil {
		if doc != nil && !doc.Exists() {
			return nil, fmt.Errorf("survey %s not found", surveyID)
		}
		return nil, fmt.Errorf("get survey doc: %w", err)
	}
	var sd surveyDoc
	if err := doc.DataTo(&sd); err != nil {
		return nil, fmt.Errorf("decode survey doc: %w", err)
	}

	content := &SurveyContent{
		Survey: store.Survey{
			ID:          surveyID,
			Title:       sd.Title,
			Description: sd.Description,
		},
	}

	jobDocs, err := ref.Collection("jobs").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("get jobs: %w", err)
	}
	for _, jd := range jobDocs {
		var j jobDoc
		if err := jd.DataTo(&j); err != nil {
			c.logger.Warn("skipping malformed job doc",
				zap.String("doc_id", jd.Ref.ID), zap.Error(err))
			continue
		}
		tasks, err := json.Marshal(j.Tasks)
		if err != nil {
			return nil, fmt.Errorf("encode tasks for job %s: %w", jd.Ref.ID, err)
		}
		content.Jobs = append(content.Jobs, store.Job{
			ID:       jd.Ref.ID,
			SurveyID: surveyID,
			Name:     j.Name,
			Tasks:    string(tasks),
		})
	}

	loiDocs, err := ref.Collection("lois").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("get lois: %w", err)
	}
	for _, ld := range loiDocs {
		var l loiDoc
		if err := ld.DataTo(&l); err != nil {
			c.logger.Warn("skipping malformed loi doc",
				zap.String("doc_id", ld.Ref.ID), zap.Error(err))
			continue
		}
		content.LOIs = append(content.LOIs, store.LOI{
			ID:       ld.Ref.ID,
			SurveyID: surveyID,
			JobID:    l.JobID,
			Caption:  l.Caption,
			Geometry: l.Geometry,
		})
	}

	return content, nil
}
