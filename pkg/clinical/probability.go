package clinical

import (
	"sort"
	"strings"
)

// MaxDiagnoses is the number of differential diagnoses a suggestion carries.
const MaxDiagnoses = 5

// Likelihood is the ranked reading of a free-text probability label.
type Likelihood int

const (
	LikelihoodUnknown Likelihood = iota
	LikelihoodLow
	LikelihoodMedium
	LikelihoodHigh
)

func (l Likelihood) String() string {
	switch l {
	case LikelihoodHigh:
		return "alta"
	case LikelihoodMedium:
		return "media"
	case LikelihoodLow:
		return "baixa"
	}
	return "desconhecida"
}

// ClassifyProbability reads a label such as "Alta", "Média" or "Moderada".
// Matching is by substring on the lower-cased label, high first, so
// "Média-Alta" reads as high. Labels in other languages or numeric
// probabilities are LikelihoodUnknown.
func ClassifyProbability(label string) Likelihood {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "alta"):
		return LikelihoodHigh
	case strings.Contains(l, "média"), strings.Contains(l, "media"), strings.Contains(l, "moderada"):
		return LikelihoodMedium
	case strings.Contains(l, "baixa"):
		return LikelihoodLow
	}
	return LikelihoodUnknown
}

// RankDiagnoses drops unnamed entries, orders the rest by descending
// likelihood (keeping the model's order within a level) and caps the list at
// MaxDiagnoses. The input slice is not modified.
func RankDiagnoses(in []Diagnosis) []Diagnosis {
	out := make([]Diagnosis, 0, len(in))
	for _, d := range in {
		d.Nome = strings.TrimSpace(d.Nome)
		d.Probabilidade = strings.TrimSpace(d.Probabilidade)
		if d.Nome == "" {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ClassifyProbability(out[i].Probabilidade) > ClassifyProbability(out[j].Probabilidade)
	})
	if len(out) > MaxDiagnoses {
		out = out[:MaxDiagnoses]
	}
	return out
}
