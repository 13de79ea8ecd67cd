package recognition

import (
	"context"
	"fmt"

	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

// PresentLister returns the students already marked Present on a date.
type PresentLister interface {
	PresentOn(ctx context.Context, classID, date string) (map[string]bool, error)
}

// LoadParams assembles the activation inputs of a class: the gallery of every student with a
// reference embedding, in roll number order, and the students already present on date.
func LoadParams(ctx context.Context, students database.StudentReader, present PresentLister,
	classID, date string, threshold float64) (Params, error) {
	list, err := students.ListStudents(ctx, classID)
	if err != nil {
		return Params{}, fmt.Errorf("listing students of class %s: %w", classID, err)
	}

	p := Params{
		ClassID:   classID,
		Date:      date,
		Names:     make(map[string]string, len(list)),
		Threshold: threshold,
	}
	refs := make([]database.ReferenceEmbedding, 0, len(list))
	for i := range list {
		s := &list[i]
		p.Names[s.ID] = s.Name
		refs = append(refs, database.ReferenceEmbedding{StudentID: s.ID, ClassID: classID, Embedding: s.FaceDescriptor})
	}
	if gallery := facematch.GalleryFromReferences(refs); len(gallery) > 0 {
		p.Gallery = gallery
	}

	p.Present, err = present.PresentOn(ctx, classID, date)
	if err != nil {
		return Params{}, fmt.Errorf("loading attendance of %s: %w", date, err)
	}
	return p, nil
}
