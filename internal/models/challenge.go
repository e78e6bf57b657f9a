package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// Challenge is a gamification task users respond to for points.
type Challenge struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	EvaluationType string         `gorm:"size:16;not null;index" json:"evaluation_type"`
	Points         int            `gorm:"not null;default:0" json:"points"`
	QRCode         string         `gorm:"size:128" json:"-"`
	Quiz           datatypes.JSON `gorm:"type:json" json:"-"`
	Requirements   datatypes.JSON `gorm:"type:json" json:"-"`
	Active         bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// QuizOption is one selectable answer.
type QuizOption struct {
	ID      string `json:"id" yaml:"id"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// QuizQuestion is a single-choice question of a quiz challenge.
type QuizQuestion struct {
	ID      string       `json:"id" yaml:"id"`
	Prompt  string       `json:"prompt" yaml:"prompt"`
	Options []QuizOption `json:"options" yaml:"options"`
}

// SetRequirements serializes the requirement list into its JSON column.
func (c *Challenge) SetRequirements(requirements []scoring.Requirement) {
	if requirements == nil {
		requirements = []scoring.Requirement{}
	}
	data, err := json.Marshal(requirements)
	if err != nil {
		c.Requirements = datatypes.JSON([]byte("[]"))
		return
	}
	c.Requirements = datatypes.JSON(data)
}

// RequirementList deserializes the stored requirements.
func (c Challenge) RequirementList() []scoring.Requirement {
	if len(c.Requirements) == 0 {
		return nil
	}

	var requirements []scoring.Requirement
	if err := json.Unmarshal(c.Requirements, &requirements); err != nil {
		return nil
	}

	return requirements
}

// SetQuiz serializes the quiz questions into their JSON column.
func (c *Challenge) SetQuiz(questions []QuizQuestion) {
	if questions == nil {
		questions = []QuizQuestion{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		c.Quiz = datatypes.JSON([]byte("[]"))
		return
	}
	c.Quiz = datatypes.JSON(data)
}

// QuizQuestions deserializes the stored quiz.
func (c Challenge) QuizQuestions() []QuizQuestion {
	if len(c.Quiz) == 0 {
		return nil
	}

	var questions []QuizQuestion
	if err := json.Unmarshal(c.Quiz, &questions); err != nil {
		return nil
	}

	return questions
}

// ScoringView returns the read-only challenge view used by review sessions.
func (c Challenge) ScoringView() scoring.Challenge {
	return scoring.Challenge{
		ID:             c.ID,
		Title:          c.Title,
		EvaluationType: scoring.EvaluationType(c.EvaluationType),
		Points:         c.Points,
		Requirements:   c.RequirementList(),
	}
}

// MaxPoints is the highest score a submission can be awarded.
func (c Challenge) MaxPoints() int {
	if scoring.EvaluationType(c.EvaluationType) == scoring.EvaluationFile {
		total := 0
		for _, requirement := range c.RequirementList() {
			total += requirement.Points
		}
		if total > 0 {
			return total
		}
	}
	return c.Points
}
