package mongoracle

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Pipeline is a bare sequence of aggregation stage documents, one of the
// input shapes Translate accepts alongside bson.D/bson.A/[]bson.D/JSON
// text. It carries no builder surface: callers that already have a
// []bson.D (decoded from a driver call, a fixture, a mongosh export) wrap
// it here instead of re-encoding it as JSON first.
type Pipeline struct {
	stages []bson.D
}

// NewPipeline wraps an existing stage slice as a Pipeline.
func NewPipeline(stages ...bson.D) Pipeline {
	return Pipeline{stages: stages}
}

// BsonD returns the pipeline's stages as a []bson.D (mongo.Pipeline).
func (p Pipeline) BsonD() []bson.D {
	return p.stages
}

// IsEmpty reports whether the pipeline has no stages.
func (p Pipeline) IsEmpty() bool {
	return len(p.stages) == 0
}
