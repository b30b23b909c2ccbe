/*
Package rootcause is a forward-chaining rule engine for diagnosing captured
invocation traces.

Rules declare the tag types they consume and the tag type they produce. A
diagnosis session wraps its input in a root tag and fires every rule whose
inputs are available until a round executes nothing; the tags nothing was
derived from form the result.

# Concept

Tags form a derivation tree: each tag produced by a rule points to the tag the
rule was fired by. A rule requiring several types receives one input per
candidate whose ancestor chain holds all of them, so results stay attached to
the branch of the tree they were derived from. Every rule runs at most once on
the same input within a session.

Sessions are pooled. The Engine bounds how many runs are in flight and reuses
passivated sessions between runs.

# Usage

	rules := []rule.Rule{
		rule.New("length").
			Requires(domain.RootTagType).
			Produces("Length").
			Do(func(in domain.RuleInput, _ domain.SessionVariables) (any, error) {
				return len(in.Value(domain.RootTagType).(string)), nil
			}).
			MustBuild(),
	}

	eng, err := rootcause.New[string, collector.DefaultResult[string]](rules, collector.Default[string]())
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close(context.Background())

	res, err := eng.Diagnose(context.Background(), "input", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Values("Length"))

See package diagnosis for the rule set analysing invocation traces.
*/
package rootcause
