// Package runstore persists workflow runs and the attempt history of their
// tasks. The scheduler reads it back on start to resume its last triggered
// logical date; the status API lists it.
package runstore
