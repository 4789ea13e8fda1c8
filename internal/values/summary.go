package values

import "math"

// TagSummary aggregates the numeric values that share a tag.
type TagSummary struct {
	Tag   Tag     `json:"tag"`
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summarize groups values by tag in order of first appearance. All figures
// are rounded to 2 decimals.
func Summarize(vals []Value) []TagSummary {
	index := make(map[Tag]int)
	var out []TagSummary

	for _, v := range vals {
		i, ok := index[v.Tag]
		if !ok {
			i = len(out)
			index[v.Tag] = i
			out = append(out, TagSummary{
				Tag: v.Tag,
				Min: v.NumericValue,
				Max: v.NumericValue,
			})
		}
		s := &out[i]
		s.Count++
		s.Sum += v.NumericValue
		s.Min = math.Min(s.Min, v.NumericValue)
		s.Max = math.Max(s.Max, v.NumericValue)
	}

	for i := range out {
		s := &out[i]
		s.Mean = round2(s.Sum / float64(s.Count))
		s.Sum = round2(s.Sum)
		s.Min = round2(s.Min)
		s.Max = round2(s.Max)
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
