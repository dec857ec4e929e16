package provision

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a step of the provisioning state machine.
type Stage int

const (
	StageRequested Stage = iota
	StageDatabaseCreated
	StageSchemaApplied
	StageRegistered
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageDatabaseCreated:
		return "database_created"
	case StageSchemaApplied:
		return "schema_applied"
	case StageRegistered:
		return "registered"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalText renders the stage name in JSON.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Job tracks one provisioning run.  It is returned on success and failure
// so callers can see how far the run got.
type Job struct {
	ID           uuid.UUID `json:"id"`
	Subdomain    string    `json:"subdomain"`
	Code         string    `json:"code"`
	DatabaseName string    `json:"database_name"`

	Stage Stage `json:"stage"`

	// FailedAt is the stage that was being attempted when the run failed.
	FailedAt *Stage `json:"failed_at,omitempty"`

	Created    bool `json:"database_created"`
	Migrated   bool `json:"schema_applied"`
	Registered bool `json:"registered"`
	Seeded     bool `json:"seeded"`

	TenantID   int64     `json:"tenant_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func newJob(req *Request) *Job {
	return &Job{
		ID:           uuid.New(),
		Subdomain:    req.Subdomain,
		Code:         req.Code,
		DatabaseName: DatabaseName(req.Subdomain),
		Stage:        StageRequested,
		StartedAt:    time.Now().UTC(),
	}
}

// advance records reaching s.
func (j *Job) advance(s Stage) {
	j.Stage = s
	switch s {
	case StageDatabaseCreated:
		j.Created = true
	case StageSchemaApplied:
		j.Migrated = true
	case StageRegistered:
		j.Registered = true
	case StageComplete:
		j.FinishedAt = time.Now().UTC()
	}
}

// fail moves the job to StageFailed while attempting s.
func (j *Job) fail(s Stage, kind, err error) *Error {
	at := s
	j.FailedAt = &at
	j.Stage = StageFailed
	j.FinishedAt = time.Now().UTC()
	return &Error{Stage: s, Kind: kind, Err: err}
}
