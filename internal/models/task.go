package models

import (
	"slices"
	"time"
)

// Origin identifies the system of record that owns a task.
type Origin string

const (
	OriginNative   Origin = "native"
	OriginTrackerA Origin = "tracker-a"
	OriginTrackerB Origin = "tracker-b"
)

// Origins lists every known origin, native first.
var Origins = []Origin{OriginNative, OriginTrackerA, OriginTrackerB}

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return slices.Contains(Origins, o)
}

// IsTracker reports whether o mirrors an external tracker.
func (o Origin) IsTracker() bool {
	return o == OriginTrackerA || o == OriginTrackerB
}

// ParseOrigin returns the origin named by s.
func ParseOrigin(s string) (Origin, bool) {
	o := Origin(s)
	return o, o.Valid()
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// Rank orders priorities from low to urgent; unknown values rank -1.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// Valid reports whether p is one of the four priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Task is the canonical work item shared by every origin.
// Native tasks are persisted as-is; tracker tasks are built by their source adapter.
type Task struct {
	ID              string     `gorm:"primarykey;type:varchar(64)" json:"id"`
	WorkspaceID     uint64     `gorm:"not null;index" json:"workspace_id"`
	Title           string     `gorm:"type:varchar(200);not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Status          Status     `gorm:"type:varchar(20);not null;default:'todo'" json:"status"`
	Priority        Priority   `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	StartDate       *time.Time `json:"start_date"`
	DueDate         *time.Time `json:"due_date"`
	EstimatedEffort float64    `gorm:"not null;default:0" json:"estimated_effort"`
	Assignees       []string   `gorm:"type:text;serializer:json" json:"assignees"`
	Tags            []string   `gorm:"type:text;serializer:json" json:"tags"`
	Project         string     `gorm:"type:varchar(255)" json:"project,omitempty"`
	Origin          Origin     `gorm:"type:varchar(20);not null" json:"origin"`
	ExternalRef     string     `gorm:"type:varchar(512)" json:"external_ref,omitempty"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Owned sub-collections, destroyed with the task
	Subtasks    []Subtask    `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"subtasks"`
	Comments    []Comment    `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"comments"`
	Attachments []Attachment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"attachments"`
}

type Subtask struct {
	ID        string `gorm:"primarykey;type:varchar(64)" json:"id"`
	TaskID    string `gorm:"type:varchar(64);not null;index" json:"-"`
	Position  int    `gorm:"not null;default:0" json:"-"`
	Title     string `gorm:"type:varchar(200);not null" json:"title"`
	Completed bool   `gorm:"not null;default:false" json:"completed"`
	Assignee  string `gorm:"type:varchar(255)" json:"assignee,omitempty"`
}

type Comment struct {
	ID        string    `gorm:"primarykey;type:varchar(64)" json:"id"`
	TaskID    string    `gorm:"type:varchar(64);not null;index" json:"-"`
	Position  int       `gorm:"not null;default:0" json:"-"`
	Author    string    `gorm:"type:varchar(255)" json:"author"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Mentions  []string  `gorm:"type:text;serializer:json" json:"mentions,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Attachment struct {
	ID       string `gorm:"primarykey;type:varchar(64)" json:"id"`
	TaskID   string `gorm:"type:varchar(64);not null;index" json:"-"`
	Position int    `gorm:"not null;default:0" json:"-"`
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	URL      string `gorm:"type:varchar(1024);not null" json:"url"`
	MimeType string `gorm:"type:varchar(127)" json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Clone returns a deep copy, so that callers can never alias store state.
func (t Task) Clone() Task {
	c := t
	c.StartDate = cloneTime(t.StartDate)
	c.DueDate = cloneTime(t.DueDate)
	c.SyncedAt = cloneTime(t.SyncedAt)
	c.Assignees = slices.Clone(t.Assignees)
	c.Tags = slices.Clone(t.Tags)
	c.Subtasks = slices.Clone(t.Subtasks)
	c.Attachments = slices.Clone(t.Attachments)
	if t.Comments != nil {
		c.Comments = make([]Comment, len(t.Comments))
		for i, cm := range t.Comments {
			cm.Mentions = slices.Clone(cm.Mentions)
			c.Comments[i] = cm
		}
	}
	return c
}

// HasTag reports whether the task carries label.
func (t Task) HasTag(label string) bool {
	return slices.Contains(t.Tags, label)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
