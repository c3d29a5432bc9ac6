// Package parfor contains the core vocabulary of the parfor optimizer, a rule-based planner for
// parallel-for loops inside compiled dataflow programs. This root package defines the types which
// are shared by the program model, the plan tree, the cost estimator and the optimizer itself, as
// well as the configuration which the optimizer commits for each loop, and is an excellent overview
// of the optimizer's key concepts.
package parfor
