package db

import (
	"context"
	"math/rand/v2"

	"github.com/nickyhof/innoldb/core"
)

var (
	mockDepartments = []string{"Business Development", "Research and Development", "Innovation and Technology"}
	mockLocations   = []string{"Virginia", "Maryland", "Florida", "Minnesota", "West Virginia"}
	mockTeams       = []string{"Innovation", "InnoLab", "Innovation Lab", "Inno Lab", "Laboratory"}
	mockSpecialties = []string{"Application Development", "Cloud Migration", "Data Analytics", "Machine Learning"}
	mockMembers     = []map[string]any{
		{"UI/UX": "Phung"}, {"Solutions": "Justin"}, {"Capabilities": "Peter"},
		{"Developer #1": "Thomas"}, {"Developer #2": "Aurora"}, {"DevSecOps": "Grant"},
		{"Scrum": "Selah"}, {"Architect": "Tariq"},
	}
)

// MockFields returns a random team document. A nil rng uses the global source.
func MockFields(rng *rand.Rand) map[string]any {
	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}

	members := make([]any, intn(len(mockMembers)))
	for i := range members {
		members[i] = mockMembers[i]
	}

	return map[string]any{
		"company":    "Makpar",
		"department": mockDepartments[intn(len(mockDepartments))],
		"location":   mockLocations[intn(len(mockLocations))],
		"team":       mockTeams[intn(len(mockTeams))],
		"specialty":  mockSpecialties[intn(len(mockSpecialties))],
		"members":    members,
	}
}

// Mock saves a random document with a fresh id.
func (q *Query) Mock(ctx context.Context, rng *rand.Rand) (core.Document, error) {
	fields := MockFields(rng)
	fields[q.Index()] = core.NewID()
	return q.Save(ctx, core.NewDocument(q.Table(), q.Index(), fields))
}
