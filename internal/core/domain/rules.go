package domain

// PolicyRules are the editorial criteria the values-fit stage weighs an
// article against. They are supplied read-only and refreshed once per run.
type PolicyRules struct {
	MustHave  []string `json:"must_have"`
	MustAvoid []string `json:"must_avoid"`
}

func (r PolicyRules) Empty() bool {
	return len(r.MustHave) == 0 && len(r.MustAvoid) == 0
}

// DefaultPolicyRules is the built-in rule set used when no rules are
// configured, so the values-fit stage never runs against an empty prompt.
func DefaultPolicyRules() PolicyRules {
	return PolicyRules{
		MustHave: []string{
			"Animals, wildlife, and farming stories",
			"Community efforts and local traditions",
			"Nature, weather, and seasonal stories",
			"Food, cooking, and traditional crafts",
		},
		MustAvoid: []string{
			"Politics, elections, and government controversy",
			"Violence, crime, death, and tragedy",
			"Alcohol, drugs, and gambling",
			"Sexual content or immodesty",
			"Modern technology focus",
			"Celebrity or individual hero worship",
			"Military, war, and international conflict",
		},
	}
}
