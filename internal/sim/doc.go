// Package sim provides in-process stand-ins for the arm's collaborators: a
// planning scene, an actuator, a motion service with configurable failure
// injection, and a top-down grasp generator. The CLI runs against them when no
// hardware is attached, and the orchestrator tests drive them directly.
package sim
