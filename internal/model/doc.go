// Package model defines regressor groups and model specifications for the
// delay-regression pipeline, and assembles the specifications each analysis
// variant estimates.
//
// Groups are shared by reference: every specification that names a group
// sees the same member list, so a change to a group definition propagates
// to all specifications using it. Regressor order inside a specification is
// significant only for table display, never for the estimates themselves.
package model
