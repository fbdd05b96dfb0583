// Package supervisor implements the stage machine engine shared by the Exec
// and Auto supervisors: a directed, mostly linear stage graph where each
// stage owns a set of concurrently ticking tasks, and transitions are driven
// by task promotion requests.
package supervisor

import (
	"fmt"

	"github.com/looplab/fsm"
)

// Stage is a named state in a supervisory machine.
type Stage string

// StageDef declares one stage of a machine's graph.
type StageDef struct {
	// Name of the stage.
	Name Stage

	// Next lists the designed edges out of this stage (forward progress and
	// explicit demotions). Fault stages are reachable implicitly and need
	// not be repeated here.
	Next []Stage

	// FaultPriority orders conflicting promotion requests raised in the same
	// tick: the target with the lower value wins. Fault stages carry the
	// lowest values so safety always outranks forward progress.
	FaultPriority int

	// Terminal marks a stage the machine never leaves on its own.
	Terminal bool
}

// Graph is a machine's full transition graph.
type Graph struct {
	// Initial is the entry stage.
	Initial Stage

	// Stages enumerates every stage exactly once.
	Stages []StageDef

	// FaultStages are reachable from every other stage, in addition to the
	// designed edges. Watchdog tasks running underneath any stage may demote
	// into them at any time.
	FaultStages []Stage
}

// validate checks the graph is closed: initial exists, edges point at
// declared stages, fault stages are declared.
func (g Graph) validate() error {
	if len(g.Stages) == 0 {
		return fmt.Errorf("graph has no stages")
	}

	known := make(map[Stage]StageDef, len(g.Stages))
	for _, def := range g.Stages {
		if _, dup := known[def.Name]; dup {
			return fmt.Errorf("stage %q declared twice", def.Name)
		}
		known[def.Name] = def
	}

	if _, ok := known[g.Initial]; !ok {
		return fmt.Errorf("initial stage %q not declared", g.Initial)
	}
	for _, def := range g.Stages {
		for _, next := range def.Next {
			if _, ok := known[next]; !ok {
				return fmt.Errorf("stage %q has edge to undeclared stage %q", def.Name, next)
			}
		}
	}
	for _, f := range g.FaultStages {
		if _, ok := known[f]; !ok {
			return fmt.Errorf("fault stage %q not declared", f)
		}
	}
	return nil
}

// def returns the definition of a stage.
func (g Graph) def(s Stage) (StageDef, bool) {
	for _, def := range g.Stages {
		if def.Name == s {
			return def, true
		}
	}
	return StageDef{}, false
}

// eventName is the fsm event that enters the given stage.
func eventName(target Stage) string {
	return "goto_" + string(target)
}

// buildFSM compiles the graph into a looplab FSM. One event per target
// stage; its sources are every stage with a designed edge to the target,
// plus (for fault stages) every other stage in the machine.
func buildFSM(g Graph) *fsm.FSM {
	srcs := make(map[Stage][]string)

	for _, def := range g.Stages {
		for _, next := range def.Next {
			srcs[next] = append(srcs[next], string(def.Name))
		}
	}

	for _, def := range g.Stages {
		for _, f := range g.FaultStages {
			if def.Name == f {
				continue
			}
			srcs[f] = append(srcs[f], string(def.Name))
		}
	}

	events := make(fsm.Events, 0, len(srcs))
	for target, sources := range srcs {
		events = append(events, fsm.EventDesc{
			Name: eventName(target),
			Src:  dedupe(sources),
			Dst:  string(target),
		})
	}

	return fsm.NewFSM(string(g.Initial), events, fsm.Callbacks{})
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
