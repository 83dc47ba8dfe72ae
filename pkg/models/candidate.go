package models

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// GraspConfig carries the end-effector specific data used to build grasps and
// place locations. The orchestrator treats it as opaque.
type GraspConfig struct {
	// EndEffectorGroup is the planning group of the gripper.
	EndEffectorGroup string `json:"end_effector_group"`
	// BaseLink is the frame candidate poses are expressed in.
	BaseLink string `json:"base_link"`
	// ObjectSize is the edge length of the (cubic) object, in meters.
	ObjectSize float64 `json:"object_size"`
	// ApproachRetreatDesired is the desired approach/retreat travel.
	ApproachRetreatDesired float64 `json:"approach_retreat_desired"`
	// ApproachRetreatMin is the minimum acceptable approach/retreat travel.
	ApproachRetreatMin float64 `json:"approach_retreat_min"`
	// PreGraspPosture holds the open-gripper joint values.
	PreGraspPosture []float64 `json:"pre_grasp_posture,omitempty"`
	// GraspPosture holds the closed-gripper joint values.
	GraspPosture []float64 `json:"grasp_posture,omitempty"`
}

// Validate checks the approach/retreat distances.
func (c GraspConfig) Validate() error {
	if c.ApproachRetreatMin < 0 {
		return fmt.Errorf("approach/retreat min distance %.3f is negative", c.ApproachRetreatMin)
	}
	if c.ApproachRetreatDesired < c.ApproachRetreatMin {
		return fmt.Errorf("approach/retreat desired distance %.3f is below min distance %.3f",
			c.ApproachRetreatDesired, c.ApproachRetreatMin)
	}
	return nil
}

// GraspCandidate is a gripper pose proposed for picking an object.
type GraspCandidate struct {
	Pose   Pose        `json:"pose"`
	Config GraspConfig `json:"config"`
	// AllowedTouchIDs lists objects the end effector may touch during the pick.
	AllowedTouchIDs []string `json:"allowed_touch_ids"`
}

// MotionHint describes a straight-line gripper translation.
type MotionHint struct {
	// Direction is a unit vector.
	Direction r3.Vector `json:"direction"`
	// Frame is the frame Direction is expressed in.
	Frame           string  `json:"frame"`
	DesiredDistance float64 `json:"desired_distance"`
	MinDistance     float64 `json:"min_distance"`
}

// PlaceCandidate is a target pose plus approach/retreat motions proposed for
// releasing an object.
type PlaceCandidate struct {
	PlacePose Pose       `json:"place_pose"`
	Frame     string     `json:"frame"`
	Approach  MotionHint `json:"approach"`
	Retreat   MotionHint `json:"retreat"`
	// PostPlacePosture is the gripper posture after release.
	PostPlacePosture []float64 `json:"post_place_posture,omitempty"`
}

// Obstacle is a static box in the scene.
type Obstacle struct {
	Name string `json:"name"`
	// Center is the box center in the base frame.
	Center r3.Vector `json:"center"`
	// Size is the full extent along each axis.
	Size r3.Vector `json:"size"`
}
