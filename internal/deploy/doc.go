// Package deploy regenerates the configuration of a managed resource and
// installs it on the resource's host.
//
// A deployment runs a fixed sequence of steps while holding the resource's
// lock: prepare the remote scripts directory, remove the previous service
// registration, render and package the instance tree, ship and unpack the
// archive, ship the separately rendered resource files, register the
// service and mark the resource ready. The first failing step aborts the
// run; completed steps are not rolled back.
package deploy
