package domain

import (
	"time"

	"github.com/google/uuid"
)

// Persona identifies which financial profile a user signed up as.
type Persona string

const (
	PersonaStudent    Persona = "STUDENT"
	PersonaParent     Persona = "PARENT"
	PersonaIndividual Persona = "INDIVIDUAL"
	PersonaCouple     Persona = "COUPLE"
	PersonaRetiree    Persona = "RETIREE"
	PersonaDailyWager Persona = "DAILY_WAGER"
)

// ValidPersona reports whether p is a known persona.
func ValidPersona(p Persona) bool {
	switch p {
	case PersonaStudent, PersonaParent, PersonaIndividual,
		PersonaCouple, PersonaRetiree, PersonaDailyWager:
		return true
	}
	return false
}

// User represents a registered account holder.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose
	Persona      Persona   `json:"persona"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
