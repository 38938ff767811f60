// Package rules holds the rewrite rules shipped with xqopt.
//
// The axis fusion family collapses two chained navigation steps into one
// step over the first step's source, removing the intermediate node
// sequence. Every member follows the same template and differs only in the
// three axes involved, so the family is a table of FusionSpec values run by
// a single AxisFusion implementation.
//
// For a visited Navigate whose source contains outer($v, test), where $v is
// bound by a Navigate directly below it to inner($x):
//
//	navigate $w <- outer($v, test)          navigate $w <- fused($x, test)
//	  navigate $v <- inner($x)        =>      <input of the inner step>
//	    <input>
//
// The bypassed step is left in place for any other consumer.
//
// Fusion preserves the set of nodes selected, not their multiplicity.
// descendant over descendant-or-self($x) yields a node once per ancestor
// it has in that sequence, the fused descendant($x) yields it once. Plans
// compiled from path expressions normalize their result with
// sort-distinct-nodes-asc, which makes the two equal; a plan consuming the
// raw step output observes fewer items after fusion.
package rules
