package rootcause_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/rootcause"
	"github.com/aretw0/rootcause/pkg/collector"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/rule"
)

// ExampleNew chains two rules: the second one only fires on tags produced by
// the first.
func ExampleNew() {
	rules := []rule.Rule{
		rule.New("words").
			Requires(domain.RootTagType).
			Produces("Word").
			DoMany(func(in domain.RuleInput, _ domain.SessionVariables) ([]any, error) {
				return []any{"slow", "query"}, nil
			}).
			MustBuild(),
		rule.New("shout").
			Requires("Word").
			Produces("Shout").
			WhenExpr("not-query", "queries stay quiet", `tags.Word != "query"`).
			Do(func(in domain.RuleInput, _ domain.SessionVariables) (any, error) {
				return in.Value("Word").(string) + "!", nil
			}).
			MustBuild(),
	}

	eng, err := rootcause.New[string, collector.DefaultResult[string]](rules, collector.Default[string]())
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close(context.Background())

	res, err := eng.Diagnose(context.Background(), "trace", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Values("Shout"))
	fmt.Println(res.ConditionFailures["shout"][0].Hint)
	// Output:
	// [slow!]
	// queries stay quiet
}
