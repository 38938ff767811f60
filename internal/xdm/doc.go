// Package xdm is a small in-memory document model for the reference
// evaluator: document, element, attribute and text nodes with a total
// document order, plus the axis steps and node tests plans use.
package xdm
