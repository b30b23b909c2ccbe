/*
Package diagnosis is the rule set locating performance problems in captured
invocation traces.

The rules run in a fixed derivation chain, each one consuming the tags of
the previous:

	Input (*trace.Invocation)
	  └─ GlobalContext          deepest invocation holding most of the trace duration
	       └─ TimeWastingOperations   signatures covering most of its exclusive time
	            └─ ProblemContext     deepest invocation subsuming one operation
	                 └─ RootCauseInvocations
	                      └─ CauseStructure   SINGLE, ITERATIVE or RECURSIVE

Every CauseStructure tag left at the end of a run is one ProblemOccurrence.
Thresholds are session variables; see DefaultVariables.
*/
package diagnosis
