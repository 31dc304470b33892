package output

import "sort"

// SortDrilldowns sorts by relevanceScore DESC, label ASC.
func SortDrilldowns(drilldowns []Drilldown) {
	sort.SliceStable(drilldowns, func(i, j int) bool {
		if drilldowns[i].RelevanceScore != drilldowns[j].RelevanceScore {
			return drilldowns[i].RelevanceScore > drilldowns[j].RelevanceScore
		}
		return drilldowns[i].Label < drilldowns[j].Label
	})
}
