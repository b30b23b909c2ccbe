/*
Package session runs diagnosis sessions and pools them.

A Session takes one input through NEW, ACTIVATED, PROCESSED and PASSIVATED
(or FAILURE), storing the input as a trigger tag and firing rules until a
round executes nothing. The execution ledger keeps a rule from running twice
on the same input within one activation.

A Pool bounds the number of activated sessions and reuses passivated ones;
when every session is borrowed, Borrow blocks or fails according to the
configured ExhaustionPolicy.
*/
package session
