package models

// Collection is one of the fixed named partitions of the persistence layer.
type Collection string

const (
	Workouts Collection = "workouts"
	Results  Collection = "results"
	Progress Collection = "progress"
	Metadata Collection = "metadata"
)

// Collections lists every collection in export order.
var Collections = []Collection{Workouts, Results, Progress, Metadata}

// Valid reports whether c names one of the fixed collections.
func (c Collection) Valid() bool {
	switch c {
	case Workouts, Results, Progress, Metadata:
		return true
	}
	return false
}

func (c Collection) String() string { return string(c) }
