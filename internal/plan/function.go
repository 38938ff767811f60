package plan

import "strings"

// FunctionID names a built-in function. Axis steps are functions whose first
// argument is the context node sequence and whose optional second argument
// is a node test constant ("b", "*", "node()", "text()").
type FunctionID string

// Axis functions.
const (
	FnChild            FunctionID = "child"
	FnDescendant       FunctionID = "descendant"
	FnDescendantOrSelf FunctionID = "descendant-or-self"
	FnSelf             FunctionID = "self"
	FnParent           FunctionID = "parent"
	FnAttribute        FunctionID = "attribute"
)

// Sequence and node functions.
const (
	FnRoot                 FunctionID = "root"
	FnIterate              FunctionID = "iterate"
	FnSequence             FunctionID = "sequence"
	FnSortDistinctNodesAsc FunctionID = "sort-distinct-nodes-asc"
	FnExists               FunctionID = "exists"
	FnNot                  FunctionID = "not"
)

// CastNamespace prefixes the function identifiers of the value-casting
// library. The optimizer treats them as opaque tags.
const CastNamespace = "cast:"

// Cast family identifiers.
const (
	FnInstanceOf FunctionID = CastNamespace + "instance-of"
	FnCastAs     FunctionID = CastNamespace + "cast-as"
	FnCastableAs FunctionID = CastNamespace + "castable-as"
	FnTreatAs    FunctionID = CastNamespace + "treat-as"
)

// FunctionInfo describes a known function.
type FunctionInfo struct {
	ID      FunctionID
	MinArgs int
	MaxArgs int // -1 for variadic
	Axis    bool
}

var functions = map[FunctionID]FunctionInfo{
	FnChild:                {ID: FnChild, MinArgs: 1, MaxArgs: 2, Axis: true},
	FnDescendant:           {ID: FnDescendant, MinArgs: 1, MaxArgs: 2, Axis: true},
	FnDescendantOrSelf:     {ID: FnDescendantOrSelf, MinArgs: 1, MaxArgs: 2, Axis: true},
	FnSelf:                 {ID: FnSelf, MinArgs: 1, MaxArgs: 2, Axis: true},
	FnParent:               {ID: FnParent, MinArgs: 1, MaxArgs: 2, Axis: true},
	FnAttribute:            {ID: FnAttribute, MinArgs: 1, MaxArgs: 2, Axis: true},
	FnRoot:                 {ID: FnRoot, MinArgs: 0, MaxArgs: 0},
	FnIterate:              {ID: FnIterate, MinArgs: 1, MaxArgs: 1},
	FnSequence:             {ID: FnSequence, MinArgs: 0, MaxArgs: -1},
	FnSortDistinctNodesAsc: {ID: FnSortDistinctNodesAsc, MinArgs: 1, MaxArgs: 1},
	FnExists:               {ID: FnExists, MinArgs: 1, MaxArgs: 1},
	FnNot:                  {ID: FnNot, MinArgs: 1, MaxArgs: 1},
	FnInstanceOf:           {ID: FnInstanceOf, MinArgs: 2, MaxArgs: 2},
	FnCastAs:               {ID: FnCastAs, MinArgs: 2, MaxArgs: 2},
	FnCastableAs:           {ID: FnCastableAs, MinArgs: 2, MaxArgs: 2},
	FnTreatAs:              {ID: FnTreatAs, MinArgs: 2, MaxArgs: 2},
}

// LookupFunction returns the description of a known function.
func LookupFunction(id FunctionID) (FunctionInfo, bool) {
	info, ok := functions[id]
	return info, ok
}

// IsCastFunction reports whether id belongs to the value-casting library.
func IsCastFunction(id FunctionID) bool {
	return strings.HasPrefix(string(id), CastNamespace)
}

// IsAxis reports whether id is an axis step function.
func IsAxis(id FunctionID) bool {
	info, ok := functions[id]
	return ok && info.Axis
}
