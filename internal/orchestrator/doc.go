// Package orchestrator drives the pick-and-place cycle.
//
// An Orchestrator owns the run's work items and walks them through an explicit
// state machine:
//
//	Init -> SceneReady -> PickAttempt -> PlaceAttempt -> ... -> Completed
//	                           ^                                   |
//	                           +--------- (repeat) SceneReady <----+
//
// Any state may end in Aborted (actuator refused, operator declined a retry,
// shutdown requested, collaborator error). Completed ends in Stopped when the
// operator does not ask for another cycle.
//
// Exactly one object is manipulated at a time. Grasp synthesis, planning and
// execution are delegated to collaborators (grasp.Generator, MotionService);
// the orchestrator only sequences them and applies the retry policy.
//
// Example usage:
//
//	orch, err := orchestrator.New(orchestrator.RequiredConfig{
//		WorkItems:      items,
//		Actuator:       actuator,
//		Motion:         motion,
//		Scene:          setup,
//		GraspGenerator: generator,
//		GraspConfig:    graspCfg,
//		Retry:          *policy.Default(),
//	}, orchestrator.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	result, err := orch.Run(ctx)
package orchestrator
