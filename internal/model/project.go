package model

import (
	"math"
	"time"
)

const (
	ProjectStatusPlanning = "planning"
	ProjectStatusActive   = "active"
	ProjectStatusDone     = "done"
	ProjectStatusArchived = "archived"
)

type Project struct {
	ID          string     `db:"id" json:"id"`
	Brand       string     `db:"brand" json:"brand"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Status      string     `db:"status" json:"status"`
	Progress    *int       `db:"progress" json:"progress,omitempty"` // Explicit override, 100 wins over tasks
	Deadline    *time.Time `db:"deadline" json:"deadline,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func ValidProjectStatus(status string) bool {
	switch status {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusDone, ProjectStatusArchived:
		return true
	}
	return false
}

// ProjectProgress is the displayed completion percentage of a project.
// An explicit progress of 100 overrides the tasks; otherwise it is the rounded
// share of done tasks, and 0 when there are no tasks.
func ProjectProgress(p *Project, tasks []*Task) int {
	if p != nil && p.Progress != nil && *p.Progress == 100 {
		return 100
	}
	if len(tasks) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(CountDone(tasks)) / float64(len(tasks))))
}

// ProjectSummary is a dashboard card: the project plus its derived numbers.
type ProjectSummary struct {
	Project    *Project `json:"project"`
	Progress   int      `json:"progress"`
	TaskCount  int      `json:"task_count"`
	DoneCount  int      `json:"done_count"`
	AssetCount int      `json:"asset_count"`
}

type Dashboard struct {
	Projects []*ProjectSummary `json:"projects"`
}

// ProjectIDs returns the working set used to filter dependent change events.
func (d *Dashboard) ProjectIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Projects))
	for _, s := range d.Projects {
		ids = append(ids, s.Project.ID)
	}
	return ids
}

type ProjectDetail struct {
	Project  *Project `json:"project"`
	Tasks    []*Task  `json:"tasks"`
	Assets   []*Asset `json:"assets"`
	Progress int      `json:"progress"`
}
