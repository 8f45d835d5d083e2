package store

// Survey represents one survey visible to the signed-in user, possibly
// with a local offline copy.
type Survey struct {
	ID               string
	Title            string
	Description      string
	ACLRole          string
	AvailableOffline bool
	SyncedAt         int64
	UpdatedAt        int64
}

// Job is a task definition belonging to a survey. Tasks holds the raw
// task list JSON as delivered by the backend.
type Job struct {
	ID       string
	SurveyID string
	Name     string
	Tasks    string
}

// LOI is a location of interest within a survey. Geometry holds the
// opaque binary-encoded geometry; the codec lives outside this tool.
type LOI struct {
	ID       string
	SurveyID string
	JobID    string
	Caption  string
	Geometry []byte
}

// Submission lifecycle states.
const (
	SubmissionDraft  = "draft"
	SubmissionQueued = "queued"
	SubmissionSynced = "synced"
)

// Submission is a locally collected task submission. Answers holds the
// raw answer map JSON. State is one of draft, queued, synced.
type Submission struct {
	ID        string
	SurveyID  string
	LOIID     string
	JobID     string
	Answers   string
	State     string
	CreatedAt int64
	UpdatedAt int64
}

// OutboxEntry represents one pending submission upload.
type OutboxEntry struct {
	ID           int64
	ClientID     string
	SubmissionID string
	Status       string // queued, sending, sent, failed
	Attempts     int
	ErrorMessage string
}
