package extract

import (
	"strings"

	"github.com/lexgraph/lexgraph/pkg/model"
)

// NormalizeEntityName canonicalizes an entity name for identity comparison:
// lowercased, trimmed, with internal whitespace collapsed to single spaces.
func NormalizeEntityName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// DedupeEntities merges entities whose normalized names collide. The first
// occurrence wins the display name; the classification is the most frequent
// one among the duplicates, with ties broken by first occurrence. The
// returned remap translates dropped entity ids to the id of the survivor.
func DedupeEntities(entities []model.Entity) ([]model.Entity, map[string]string) {
	type bucket struct {
		survivor   model.Entity
		classCount map[string]int
		classOrder []string
		members    []string
	}

	var order []string
	buckets := make(map[string]*bucket)
	for _, entity := range entities {
		key := NormalizeEntityName(entity.Name)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				survivor:   entity,
				classCount: make(map[string]int),
			}
			buckets[key] = b
			order = append(order, key)
		}
		if b.classCount[entity.Classification] == 0 {
			b.classOrder = append(b.classOrder, entity.Classification)
		}
		b.classCount[entity.Classification]++
		b.members = append(b.members, entity.ID)
	}

	remap := make(map[string]string)
	deduped := make([]model.Entity, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		best := b.classOrder[0]
		for _, class := range b.classOrder[1:] {
			if b.classCount[class] > b.classCount[best] {
				best = class
			}
		}
		survivor := b.survivor
		survivor.Classification = best
		deduped = append(deduped, survivor)
		for _, id := range b.members {
			if id != survivor.ID {
				remap[id] = survivor.ID
			}
		}
	}

	return deduped, remap
}

// RemapFacts rewrites fact subject/object references through the entity
// remap produced by DedupeEntities.
func RemapFacts(facts []model.Fact, remap map[string]string) []model.Fact {
	if len(remap) == 0 {
		return facts
	}
	for i := range facts {
		if target, ok := remap[facts[i].Subject.EntityID]; ok {
			facts[i].Subject.EntityID = target
		}
		if target, ok := remap[facts[i].Object.EntityID]; ok {
			facts[i].Object.EntityID = target
		}
	}
	return facts
}
