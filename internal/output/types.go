package output

// Drilldown is a suggested follow-up tool call. Query holds the tool name
// followed by positional arguments and --key=value flags.
type Drilldown struct {
	Label          string  `json:"label"`
	Query          string  `json:"query"`
	RelevanceScore float64 `json:"relevanceScore"`
}
