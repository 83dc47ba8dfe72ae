package models

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// WorkItem is one object to relocate during a run.
type WorkItem struct {
	// ID names the object in the scene and at the motion service. Unique per run.
	ID string `json:"id"`
	// StartPose is where the object sits at the start of each cycle.
	StartPose Pose `json:"start_pose"`
	// GoalPose is where the object should be placed.
	GoalPose Pose `json:"goal_pose"`
}

// NewWorkItem creates a work item whose goal is start translated by goalOffset.
func NewWorkItem(id string, start Pose, goalOffset r3.Vector) WorkItem {
	return WorkItem{
		ID:        id,
		StartPose: start,
		GoalPose:  start.Translate(goalOffset),
	}
}

// WorkItemIDs returns the IDs of items in order.
func WorkItemIDs(items []WorkItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

// ValidateWorkItems checks that the list is non-empty and every ID is unique
// and non-empty.
func ValidateWorkItems(items []WorkItem) error {
	if len(items) == 0 {
		return fmt.Errorf("no work items configured")
	}
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("work item %d has an empty id", i)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate work item id %q", it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}
