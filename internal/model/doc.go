// Package model contains the task descriptor, states and events shared by the
// download task, the scheduler and the sidecar record store.
package model
