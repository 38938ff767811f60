// Package harness runs rewrite scenarios described in YAML.
//
// A scenario names a CUE plan, the rules to apply and the pass budget,
// and states what the run must produce:
//
//	name: descendant_child
//	description: "//b collapses into one step"
//	plan: ../plans/descendant_child.cue
//	rules: [descendant-or-self/child]
//	max_passes: 5
//	document: "<a><b/></a>"
//	expect:
//	  state: converged
//	  passes: 2
//	  firings:
//	    descendant-or-self/child: 1
//	  result: ["/a[1]/b[1]"]
//
// Every run validates the plan after each pass and records into a fresh
// in-memory trace store; firing counts are read back from the store.
// When a document is given the plan is evaluated before and after
// rewriting and the two results must match. Plans using
// descendant-or-self/descendant must normalize their result with
// sort-distinct-nodes-asc for that to hold, since the fused step drops the
// duplicates the unfused pair produces.
//
// RunWithGolden additionally compares a snapshot of the run, including
// the explained output plan, against testdata/golden.
package harness
