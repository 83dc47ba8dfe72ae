// Command pickplace runs the pick-and-place task orchestrator.
package main

func main() {
	Execute()
}
