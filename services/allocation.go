package services

import "math"

// Share - вклад участника в общее число слотов события.
type Share struct {
	ParticipantID  int
	Participations int
}

// Allocation - вычисленная доля участника в стоимости события.
type Allocation struct {
	ParticipantID int
	Amount        int64
}

// SplitCost раскладывает стоимость события (цена корта × число кортов)
// по участникам пропорционально их слотам. Каждая доля округляется до
// ближайшего целого, половины - от нуля. Суммы НЕ подгоняются к общей
// стоимости: накопленная погрешность округления принимается как есть.
//
// Вызывать с нулевой суммой слотов нельзя - финализация требует хотя бы
// одного участника.
func SplitCost(courtPrice int64, courts int, shares []Share) []Allocation {
	total := courtPrice * int64(courts)

	totalParticipations := 0
	for _, s := range shares {
		totalParticipations += s.Participations
	}

	allocations := make([]Allocation, 0, len(shares))
	for _, s := range shares {
		amount := math.Round(float64(total) * float64(s.Participations) / float64(totalParticipations))
		allocations = append(allocations, Allocation{
			ParticipantID: s.ParticipantID,
			Amount:        int64(amount),
		})
	}
	return allocations
}
