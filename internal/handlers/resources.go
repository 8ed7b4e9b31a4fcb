package handlers

import (
	"strconv"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

type relation struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func relationTo(resourceType string, id uint) relation {
	return relation{ID: strconv.FormatUint(uint64(id), 10), Type: resourceType}
}

func assessmentResource(a *models.Assessment) models.Resource {
	r := models.NewResource(models.TypeAssessment, a.ID, a).
		WithRelationship("subject", relationTo(models.TypeSubject, a.SubjectID))

	if len(a.Questions) > 0 {
		rels := make([]relation, 0, len(a.Questions))
		for _, q := range a.Questions {
			rels = append(rels, relationTo(models.TypeQuestion, q.QuestionID))
		}
		r = r.WithRelationship("questions", rels)
	}
	if len(a.Groups) > 0 {
		rels := make([]relation, 0, len(a.Groups))
		for _, g := range a.Groups {
			rels = append(rels, relationTo(models.TypeGroup, g.ID))
		}
		r = r.WithRelationship("groups", rels)
	}
	return r
}

func questionResource(q *models.Question) models.Resource {
	r := models.NewResource(models.TypeQuestion, q.ID, q)
	if q.CategoryID != nil {
		r = r.WithRelationship("category", relationTo(models.TypeCategory, *q.CategoryID))
	}
	if q.PassageID != nil {
		r = r.WithRelationship("passage", relationTo(models.TypePassage, *q.PassageID))
	}
	return r
}

func subjectResource(s *models.Subject) models.Resource {
	return models.NewResource(models.TypeSubject, s.ID, s)
}

func categoryResource(c *models.Category) models.Resource {
	return models.NewResource(models.TypeCategory, c.ID, c)
}

func passageResource(p *models.Passage) models.Resource {
	return models.NewResource(models.TypePassage, p.ID, p)
}

func groupResource(g *models.Group) models.Resource {
	return models.NewResource(models.TypeGroup, g.ID, g)
}

// Users are keyed by their Casdoor id, which is not numeric.
func userResource(u *models.User) models.Resource {
	return models.Resource{ID: u.ID, Type: models.TypeUser, Attributes: u}
}

func attemptResource(a *models.AssessmentAttempt) models.Resource {
	return models.NewResource(models.TypeAttempt, a.ID, a).
		WithRelationship("assessment", relationTo(models.TypeAssessment, a.AssessmentID))
}

func sessionResource(s *models.AttemptSession) models.Resource {
	return models.NewResource(models.TypeAttempt, s.Attempt.ID, s).
		WithRelationship("assessment", relationTo(models.TypeAssessment, s.Attempt.AssessmentID))
}

func resultResource(r *models.AttemptResult) models.Resource {
	return models.NewResource(models.TypeResult, r.AttemptID, r).
		WithRelationship("attempt", relationTo(models.TypeAttempt, r.AttemptID)).
		WithRelationship("assessment", relationTo(models.TypeAssessment, r.AssessmentID))
}
