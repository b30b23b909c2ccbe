package rule

// Info describes a rule in listings.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Requires    []string `json:"requires"`
	Produces    string   `json:"produces,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
}

// Describe returns the listing entry of r. Produces and Conditions are only
// known for rules built with New.
func Describe(r Rule) Info {
	info := Info{
		Name:        r.Name(),
		Description: r.Description(),
		Requires:    r.FireCondition().TagTypes(),
	}
	if d, ok := r.(*Definition); ok {
		info.Produces = d.ResultType()
		info.Conditions = d.Conditions()
	}
	return info
}

// DescribeAll describes rules in order.
func DescribeAll(rules []Rule) []Info {
	infos := make([]Info, 0, len(rules))
	for _, r := range rules {
		infos = append(infos, Describe(r))
	}
	return infos
}
