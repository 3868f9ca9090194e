package localstore

import (
	"time"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
)

// Draft is the in-progress workout snapshot. ID is local; RemoteID is the id of the
// server-side draft slot once a remote save was acknowledged. RemoteAttempted is set
// before the first remote save is sent, so a slot whose acknowledgement was lost can
// still be found and retired.
type Draft struct {
	ID              string                   `json:"id"`
	RemoteID        string                   `json:"remoteId,omitempty"`
	RemoteAttempted bool                     `json:"remoteAttempted,omitempty"`
	Workout         domain.WorkoutSubmission `json:"workout"`
	UpdatedAt       time.Time                `json:"updatedAt"`
	RemoteSyncedAt  *time.Time               `json:"remoteSyncedAt,omitempty"`
}

// Key implements Entity.
func (d Draft) Key() string { return d.ID }

// Workout is a finished workout cached on the device.
type Workout struct {
	ID         string                   `json:"id"`
	Workout    domain.WorkoutSubmission `json:"workout"`
	FinishedAt time.Time                `json:"finishedAt"`
}

// Key implements Entity.
func (w Workout) Key() string { return w.ID }

// Exercise is a cached catalog entry.
type Exercise struct {
	ID   string              `json:"id"`
	Name string              `json:"name"`
	Type domain.ExerciseType `json:"type"`
}

// Key implements Entity.
func (e Exercise) Key() string { return e.ID }
