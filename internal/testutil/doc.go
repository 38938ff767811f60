// Package testutil holds builders shared by the package tests: a silent
// logger, a sample document and path-shaped plans over the document root.
package testutil
