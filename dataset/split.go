package dataset

import (
	"fmt"
	"math/rand"
)

const DefaultSeed = 42

// Splits holds the three fixed dataset partitions. They are created once and
// persisted so that every experiment sees identical data.
type Splits struct {
	Train []Record
	Val   []Record
	Test  []Record
}

// Split shuffles records with the given seed and partitions them 80/10/10.
// The partitions are disjoint and cover the input exactly; the same seed
// always produces the same partition.
func Split(records []Record, seed int64) Splits {
	shuffled := make([]Record, len(records))
	copy(shuffled, records)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTrain := len(shuffled) * 80 / 100
	nVal := len(shuffled) * 10 / 100

	return Splits{
		Train: shuffled[:nTrain],
		Val:   shuffled[nTrain : nTrain+nVal],
		Test:  shuffled[nTrain+nVal:],
	}
}

// Summary records dataset sizes and per-type counts alongside the split
// files, mirroring the stats the extraction stage reports.
type Summary struct {
	TotalExamples int            `json:"total_examples"`
	TrainSize     int            `json:"train_size"`
	ValSize       int            `json:"val_size"`
	TestSize      int            `json:"test_size"`
	TypeBreakdown map[string]int `json:"type_breakdown"`
	Extraction    ExtractStats   `json:"extraction"`
}

func (s Splits) Summarize(stats ExtractStats) Summary {
	breakdown := make(map[string]int)
	total := 0
	for _, split := range [][]Record{s.Train, s.Val, s.Test} {
		for _, record := range split {
			breakdown[record.Type]++
			total++
		}
	}

	return Summary{
		TotalExamples: total,
		TrainSize:     len(s.Train),
		ValSize:       len(s.Val),
		TestSize:      len(s.Test),
		TypeBreakdown: breakdown,
		Extraction:    stats,
	}
}

func (s Splits) Validate() error {
	seen := make(map[string]string)
	for name, split := range map[string][]Record{"train": s.Train, "val": s.Val, "test": s.Test} {
		for _, record := range split {
			if record.InputText == "" || record.TargetText == "" {
				return fmt.Errorf("empty input or target text in %v split", name)
			}
			if other, dup := seen[record.InputText]; dup {
				return fmt.Errorf("input appears in both %v and %v splits", other, name)
			}
			seen[record.InputText] = name
		}
	}
	return nil
}
